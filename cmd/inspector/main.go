// Command inspector computes typed-data artifacts offline: the encodeType
// strings, type hashes, domain separator and order digest for a sample (or
// supplied) order, and optionally a signature over it. Useful for checking
// an external signer against this engine without running the server.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mintgate/mintgate/internal/dispatch"
	"github.com/mintgate/mintgate/internal/model"
	"github.com/mintgate/mintgate/internal/signer"
)

func main() {
	var (
		name     = flag.String("name", "MintGate", "EIP-712 domain name")
		version  = flag.String("version", "1", "EIP-712 domain version")
		chainID  = flag.Int64("chain-id", 1, "EIP-712 chain id")
		contract = flag.String("contract", "0x0000000000000000000000000000000000000001", "verifying contract address")
		keyHex   = flag.String("key", "", "hex private key; when set, the sample order is signed with it and maker/taker default to its address")
	)
	flag.Parse()

	domain := signer.Domain{
		Name:              *name,
		Version:           *version,
		ChainID:           *chainID,
		VerifyingContract: common.HexToAddress(*contract),
	}
	hasher := signer.NewHasher(domain)

	fmt.Println("== encodeType strings ==")
	types := signer.EncodeTypes()
	keys := make([]string, 0, len(types))
	for k := range types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-14s %s\n", k, types[k])
	}

	fmt.Println("\n== type hashes ==")
	fmt.Printf("Item          %s\n", signer.ItemTypeHash.Hex())
	fmt.Printf("Payment       %s\n", signer.PaymentTypeHash.Hex())
	fmt.Printf("PaymentOption %s\n", signer.PaymentOptionTypeHash.Hex())
	fmt.Printf("Sale          %s\n", signer.SaleTypeHash.Hex())
	fmt.Printf("Order         %s\n", signer.OrderTypeHash.Hex())

	fmt.Println("\n== domain ==")
	fmt.Printf("name=%s version=%s chainId=%d contract=%s\n",
		domain.Name, domain.Version, domain.ChainID, domain.VerifyingContract.Hex())
	fmt.Printf("separator     %s\n", domain.Separator().Hex())

	taker := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	maker := common.HexToAddress("0x00000000000000000000000000000000000000BB")

	var signingKey *signer.Signer
	if *keyHex != "" {
		var err error
		signingKey, err = signer.NewSigner(*keyHex)
		if err != nil {
			log.Fatalf("bad key: %v", err)
		}
		taker = signingKey.Address()
	}

	order, err := sampleOrder(maker, taker)
	if err != nil {
		log.Fatalf("building sample order: %v", err)
	}

	fmt.Println("\n== sample order ==")
	fmt.Printf("maker         %s\n", order.Maker.Hex())
	fmt.Printf("taker         %s\n", order.Sale.Taker.Hex())
	fmt.Printf("collection    %s\n", order.Sale.Item.TokenAddress.Hex())
	fmt.Printf("usdPrice      %s\n", order.Sale.Payments.USDPrice.String())
	fmt.Printf("digest        %s\n", hasher.OrderDigest(order).Hex())

	if signingKey != nil {
		sig, err := signingKey.SignOrder(hasher, order)
		if err != nil {
			log.Fatalf("signing: %v", err)
		}
		fmt.Printf("signature     %s\n", hexutil.Encode(sig))
		fmt.Printf("signed by     %s\n", signingKey.Address().Hex())
	}
}

// sampleOrder builds a fixed native-payment ERC-721 order so two
// implementations can compare digests on identical input.
func sampleOrder(maker, taker common.Address) (*model.Order, error) {
	collection := common.HexToAddress("0x00000000000000000000000000000000000000CC")

	tokenInfo, err := dispatch.EncodeTokenInfo(maker, taker, big.NewInt(7), "ipfs://sample/7")
	if err != nil {
		return nil, err
	}

	usdPrice := new(big.Int).Mul(big.NewInt(100), model.USDScale)

	return &model.Order{
		Maker: maker,
		Sale: model.Sale{
			Taker: taker,
			Item: model.Item{
				TokenAddress: collection,
				Deadline:     big.NewInt(0),
				TokenInfo:    tokenInfo,
			},
			Payments: model.Payment{
				USDPrice: usdPrice,
				Payments: []common.Address{model.NativeToken},
			},
			Nonce:    big.NewInt(1),
			Deadline: big.NewInt(0),
		},
		Option: model.PaymentOption{
			Token:    model.NativeToken,
			Amount:   big.NewInt(0),
			Deadline: big.NewInt(0),
		},
	}, nil
}

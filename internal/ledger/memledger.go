package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintgate/mintgate/internal/pkg/apperrors"
	"github.com/mintgate/mintgate/internal/signer"
)

// MintHook lets tests and the dev server observe or sabotage a mint
// dispatch. Returning false or an error aborts the whole transaction. The
// context is the settlement's own, so a hook calling back into the engine
// is detected as reentrant.
type MintHook func(ctx context.Context, call *MintCall) (bool, error)

// MemLedger is an in-memory execution environment with the same
// all-or-nothing commit guarantee a chain provides. Everything happens
// under one lock; failed transactions are rolled back before returning.
type MemLedger struct {
	mu          sync.Mutex
	chainID     int64
	custody     common.Address
	native      map[common.Address]*big.Int
	tokens      map[common.Address]*memToken
	collections map[common.Address]*memCollection
	now         func() time.Time
}

type memToken struct {
	domainSeparator common.Hash
	balances        map[common.Address]*big.Int
	allowances      map[common.Address]map[common.Address]*big.Int
	permitNonces    map[common.Address]*big.Int
}

type memCollection struct {
	capability Capability
	mints      []MintCall
	hook       MintHook
}

// NewMemLedger creates an empty ledger. custody is the settlement engine's
// own identity: the permit spender, the source of native pushes and the
// escrow for supplied value.
func NewMemLedger(chainID int64, custody common.Address) *MemLedger {
	return &MemLedger{
		chainID:     chainID,
		custody:     custody,
		native:      make(map[common.Address]*big.Int),
		tokens:      make(map[common.Address]*memToken),
		collections: make(map[common.Address]*memCollection),
		now:         time.Now,
	}
}

// SetClock overrides the permit deadline clock (tests).
func (l *MemLedger) SetClock(now func() time.Time) {
	l.now = now
}

// CreateToken registers an ERC-20 token with its permit domain.
func (l *MemLedger) CreateToken(addr common.Address, name, version string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens[addr] = &memToken{
		domainSeparator: signer.TokenDomain(name, version, l.chainID, addr).Separator(),
		balances:        make(map[common.Address]*big.Int),
		allowances:      make(map[common.Address]map[common.Address]*big.Int),
		permitNonces:    make(map[common.Address]*big.Int),
	}
}

// TokenDomainSeparator exposes a token's permit domain separator so tests
// can produce valid credentials.
func (l *MemLedger) TokenDomainSeparator(addr common.Address) (common.Hash, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[addr]
	if !ok {
		return common.Hash{}, false
	}
	return tok.domainSeparator, true
}

// RegisterCollection declares a target contract and the mint capability it
// answers to ERC-165 probes.
func (l *MemLedger) RegisterCollection(addr common.Address, capability Capability) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.collections[addr] = &memCollection{capability: capability}
}

func (l *MemLedger) SetMintHook(addr common.Address, hook MintHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if col, ok := l.collections[addr]; ok {
		col.hook = hook
	}
}

// Mints returns the mint calls committed against a collection.
func (l *MemLedger) Mints(addr common.Address) []MintCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	col, ok := l.collections[addr]
	if !ok {
		return nil
	}
	out := make([]MintCall, len(col.mints))
	copy(out, col.mints)
	return out
}

func (l *MemLedger) SetNativeBalance(holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.native[holder] = new(big.Int).Set(amount)
}

func (l *MemLedger) NativeBalance(holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.nativeOf(holder))
}

func (l *MemLedger) SetBalance(token, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok, ok := l.tokens[token]; ok {
		tok.balances[holder] = new(big.Int).Set(amount)
	}
}

func (l *MemLedger) Balance(token, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[token]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balanceOf(tok, holder))
}

func (l *MemLedger) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok, ok := l.tokens[token]; ok {
		setAllowance(tok, owner, spender, new(big.Int).Set(amount))
	}
}

func (l *MemLedger) PermitNonce(token, owner common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[token]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(nonceOf(tok, owner))
}

func (l *MemLedger) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tok, ok := l.tokens[token]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrTransferFailed, "unknown token %s", token.Hex())
	}
	return new(big.Int).Set(allowanceOf(tok, owner, spender)), nil
}

func (l *MemLedger) SupportsInterface(_ context.Context, contract common.Address, interfaceID [4]byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	col, ok := l.collections[contract]
	if !ok {
		return false, nil
	}
	switch interfaceID {
	case InterfaceERC721:
		return col.capability == CapabilitySingle, nil
	case InterfaceERC1155:
		return col.capability == CapabilityQuantity, nil
	default:
		return false, nil
	}
}

// Execute commits tx under the ledger lock, undoing every applied step if
// any later step fails.
func (l *MemLedger) Execute(ctx context.Context, tx *Tx) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	// Escrow the supplied native value with the custody account; native
	// pushes and the refund are paid out of it.
	if tx.Supplied != nil && tx.Supplied.Sign() > 0 {
		if l.nativeOf(tx.Payer).Cmp(tx.Supplied) < 0 {
			return apperrors.Newf(apperrors.ErrTransferFailed, "payer %s holds less than the supplied value", tx.Payer.Hex())
		}
		l.moveNative(tx.Payer, l.custody, tx.Supplied)
		supplied := new(big.Int).Set(tx.Supplied)
		undo = append(undo, func() { l.moveNative(l.custody, tx.Payer, supplied) })
	}

	if tx.Permit != nil {
		if err := l.applyPermit(tx.Permit, &undo); err != nil {
			rollback()
			return err
		}
	}

	for _, tr := range tx.Transfers {
		if err := l.applyTransfer(tr, &undo); err != nil {
			rollback()
			return err
		}
	}

	if tx.Mint != nil {
		if err := l.applyMint(ctx, tx.Mint); err != nil {
			rollback()
			return err
		}
	}

	return nil
}

func (l *MemLedger) applyPermit(p *PermitRequest, undo *[]func()) error {
	tok, ok := l.tokens[p.Token]
	if !ok {
		return apperrors.Newf(apperrors.ErrAuthorizationFailed, "permit against unknown token %s", p.Token.Hex())
	}
	if p.Deadline == nil || p.Deadline.Cmp(big.NewInt(l.now().Unix())) < 0 {
		return apperrors.New(apperrors.ErrAuthorizationFailed, "permit credential expired", nil)
	}

	nonce := nonceOf(tok, p.Owner)
	digest := signer.PermitDigest(tok.domainSeparator, p.Owner, p.Spender, p.Value, nonce, p.Deadline)
	recovered, err := signer.Recover(digest, p.Signature)
	if err != nil {
		return apperrors.New(apperrors.ErrAuthorizationFailed, "malformed permit credential", err)
	}
	if recovered != p.Owner {
		return apperrors.New(apperrors.ErrAuthorizationFailed, "permit credential not signed by owner", nil)
	}

	prevAllowance := new(big.Int).Set(allowanceOf(tok, p.Owner, p.Spender))
	prevNonce := new(big.Int).Set(nonce)
	tok.permitNonces[p.Owner] = new(big.Int).Add(nonce, big.NewInt(1))
	setAllowance(tok, p.Owner, p.Spender, new(big.Int).Set(p.Value))
	*undo = append(*undo, func() {
		tok.permitNonces[p.Owner] = prevNonce
		setAllowance(tok, p.Owner, p.Spender, prevAllowance)
	})
	return nil
}

func (l *MemLedger) applyTransfer(tr Transfer, undo *[]func()) error {
	if tr.Amount == nil || tr.Amount.Sign() < 0 {
		return apperrors.New(apperrors.ErrTransferFailed, "negative transfer amount", nil)
	}
	if tr.Amount.Sign() == 0 {
		return nil
	}

	if tr.Native() {
		if l.nativeOf(tr.From).Cmp(tr.Amount) < 0 {
			return apperrors.Newf(apperrors.ErrTransferFailed, "native push from %s exceeds balance", tr.From.Hex())
		}
		amount := new(big.Int).Set(tr.Amount)
		l.moveNative(tr.From, tr.To, amount)
		*undo = append(*undo, func() { l.moveNative(tr.To, tr.From, amount) })
		return nil
	}

	tok, ok := l.tokens[tr.Token]
	if !ok {
		return apperrors.Newf(apperrors.ErrTransferFailed, "unknown token %s", tr.Token.Hex())
	}
	// transferFrom semantics: the custody account spends the payer's
	// allowance unless moving its own funds.
	if tr.From != l.custody {
		allowance := allowanceOf(tok, tr.From, l.custody)
		if allowance.Cmp(tr.Amount) < 0 {
			return apperrors.Newf(apperrors.ErrTransferFailed, "allowance of %s below transfer amount", tr.From.Hex())
		}
		prev := new(big.Int).Set(allowance)
		setAllowance(tok, tr.From, l.custody, new(big.Int).Sub(allowance, tr.Amount))
		from := tr.From
		*undo = append(*undo, func() { setAllowance(tok, from, l.custody, prev) })
	}
	if balanceOf(tok, tr.From).Cmp(tr.Amount) < 0 {
		return apperrors.Newf(apperrors.ErrTransferFailed, "token balance of %s below transfer amount", tr.From.Hex())
	}
	amount := new(big.Int).Set(tr.Amount)
	from, to := tr.From, tr.To
	moveToken(tok, from, to, amount)
	*undo = append(*undo, func() { moveToken(tok, to, from, amount) })
	return nil
}

func (l *MemLedger) applyMint(ctx context.Context, call *MintCall) error {
	col, ok := l.collections[call.Target]
	if !ok {
		return apperrors.Newf(apperrors.ErrDispatchFailed, "mint against unknown contract %s", call.Target.Hex())
	}
	if col.capability != call.Capability {
		return apperrors.Newf(apperrors.ErrDispatchFailed, "contract %s does not declare capability %s", call.Target.Hex(), call.Capability)
	}
	if col.hook != nil {
		ok, err := col.hook(ctx, call)
		if err != nil {
			return apperrors.New(apperrors.ErrDispatchFailed, "mint call reverted", err)
		}
		if !ok {
			return apperrors.New(apperrors.ErrDispatchFailed, "mint call returned false", nil)
		}
	}
	col.mints = append(col.mints, *call)
	return nil
}

func (l *MemLedger) nativeOf(addr common.Address) *big.Int {
	if bal, ok := l.native[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (l *MemLedger) moveNative(from, to common.Address, amount *big.Int) {
	l.native[from] = new(big.Int).Sub(l.nativeOf(from), amount)
	l.native[to] = new(big.Int).Add(l.nativeOf(to), amount)
}

func balanceOf(tok *memToken, holder common.Address) *big.Int {
	if bal, ok := tok.balances[holder]; ok {
		return bal
	}
	return big.NewInt(0)
}

func moveToken(tok *memToken, from, to common.Address, amount *big.Int) {
	tok.balances[from] = new(big.Int).Sub(balanceOf(tok, from), amount)
	tok.balances[to] = new(big.Int).Add(balanceOf(tok, to), amount)
}

func allowanceOf(tok *memToken, owner, spender common.Address) *big.Int {
	if spenders, ok := tok.allowances[owner]; ok {
		if a, ok := spenders[spender]; ok {
			return a
		}
	}
	return big.NewInt(0)
}

func setAllowance(tok *memToken, owner, spender common.Address, amount *big.Int) {
	spenders, ok := tok.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		tok.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

func nonceOf(tok *memToken, owner common.Address) *big.Int {
	if n, ok := tok.permitNonces[owner]; ok {
		return n
	}
	return big.NewInt(0)
}

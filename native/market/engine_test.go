package market

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "cryptoavisos/core/errors"
	"cryptoavisos/core/events"
	"cryptoavisos/core/state"
	"cryptoavisos/native/bank"
	"cryptoavisos/native/fees"
	"cryptoavisos/native/shipping"
	"cryptoavisos/storage"
)

const testDomain = 1

var (
	admin   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	seller  = common.HexToAddress("0x0000000000000000000000000000000000000051")
	seller2 = common.HexToAddress("0x0000000000000000000000000000000000000052")
	buyer   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	buyer2  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	daiAddr = common.HexToAddress("0x00000000000000000000000000000000000000da")
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fees.One)
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

type fixture struct {
	t      *testing.T
	engine *Engine
	mgr    *state.Manager
	signer *ecdsa.PrivateKey
	rec    *recorder
	now    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := ethcrypto.ToECDSA(bytes.Repeat([]byte{0x42}, 32))
	if err != nil {
		t.Fatalf("signer key: %v", err)
	}
	mgr := state.NewManager(storage.NewMemDB())
	engine, err := NewEngine(mgr, Params{
		Admin:         admin,
		Custody:       custody,
		InitialFee:    units(10),
		AllowedSigner: ethcrypto.PubkeyToAddress(key.PublicKey),
		DomainID:      testDomain,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f := &fixture{t: t, engine: engine, mgr: mgr, signer: key, rec: &recorder{}, now: 1_700_000_000}
	engine.SetNowFunc(func() int64 { return f.now })
	engine.SetEmitter(f.rec)

	ctx := context.Background()
	for _, who := range []common.Address{buyer, buyer2} {
		if err := engine.Mint(ctx, daiAddr, who, units(10_000)); err != nil {
			t.Fatalf("mint dai: %v", err)
		}
		if err := engine.Mint(ctx, bank.Native, who, units(100)); err != nil {
			t.Fatalf("mint native: %v", err)
		}
		if err := engine.Approve(ctx, who, daiAddr, units(10_000)); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	return f
}

func (f *fixture) balance(token, owner common.Address) *big.Int {
	f.t.Helper()
	bal, err := f.engine.Balance(token, owner)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return bal
}

func (f *fixture) submit(id uint64, token common.Address, price *big.Int, stock uint64) {
	f.t.Helper()
	err := f.engine.SubmitProduct(context.Background(), admin, ProductInput{ID: id, Seller: seller, Price: price, Token: token, Stock: stock})
	if err != nil {
		f.t.Fatalf("submit %d: %v", id, err)
	}
}

func (f *fixture) pay(who common.Address, p Payment) *Ticket {
	f.t.Helper()
	ticket, err := f.engine.PayProduct(context.Background(), who, p)
	if err != nil {
		f.t.Fatalf("pay %d: %v", p.ProductID, err)
	}
	return ticket
}

// checkConservation asserts that custody holds exactly the waiting escrow plus
// the claimable balances for token.
func (f *fixture) checkConservation(token common.Address) {
	f.t.Helper()
	ids, err := f.engine.TicketsIDs()
	if err != nil {
		f.t.Fatalf("tickets: %v", err)
	}
	expected := big.NewInt(0)
	for _, id := range ids {
		ticket, err := f.engine.Ticket(id)
		if err != nil {
			f.t.Fatalf("ticket: %v", err)
		}
		if ticket.TokenPaid == token && ticket.Status == TicketWaiting {
			expected.Add(expected, ticket.Escrowed())
		}
	}
	fee, _ := f.engine.ClaimableFee(token)
	ship, _ := f.engine.ClaimableShippingCost(token)
	expected.Add(expected, fee).Add(expected, ship)
	if got := f.balance(token, custody); got.Cmp(expected) != 0 {
		f.t.Fatalf("conservation broken for %s: custody=%s expected=%s", token.Hex(), got, expected)
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestPayAndReleaseTokenProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(256, daiAddr, units(180), 5)

	ticket := f.pay(buyer, Payment{ProductID: 256})
	product, err := f.engine.Product(256)
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if product.Stock != 4 {
		t.Fatalf("expected stock 4, got %d", product.Stock)
	}
	if ticket.Status != TicketWaiting || ticket.FeeCharged.Cmp(units(18)) != 0 {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	if ticket.ID != TicketID(256, buyer, ticket.CreatedAt, 5) {
		t.Fatalf("ticket id does not match derivation")
	}
	if fee, _ := f.engine.ClaimableFee(daiAddr); fee.Sign() != 0 {
		t.Fatalf("fee must not accrue before release, got %s", fee)
	}
	if got := f.balance(daiAddr, buyer); got.Cmp(units(10_000-180)) != 0 {
		t.Fatalf("buyer paid wrong amount, balance %s", got)
	}
	f.checkConservation(daiAddr)

	released, err := f.engine.ReleasePay(ctx, admin, ticket.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != TicketSold {
		t.Fatalf("expected sold, got %s", released.Status)
	}
	if got := f.balance(daiAddr, seller); got.Cmp(units(162)) != 0 {
		t.Fatalf("seller should receive 162, got %s", got)
	}
	if fee, _ := f.engine.ClaimableFee(daiAddr); fee.Cmp(units(18)) != 0 {
		t.Fatalf("expected claimable fee 18, got %s", fee)
	}
	f.checkConservation(daiAddr)

	_, err = f.engine.ReleasePay(ctx, admin, ticket.ID)
	expectErr(t, err, coreerrors.ErrNotWaiting)
	_, err = f.engine.RefundProduct(ctx, admin, ticket.ID)
	expectErr(t, err, coreerrors.ErrNotWaiting)
	_, err = f.engine.ReleasePay(ctx, admin, common.HexToHash("0x8989"))
	expectErr(t, err, coreerrors.ErrNotExist)
}

func TestRefundRestoresBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(256, daiAddr, units(180), 5)
	first := f.pay(buyer, Payment{ProductID: 256})
	if _, err := f.engine.ReleasePay(ctx, admin, first.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	feeBefore, _ := f.engine.ClaimableFee(daiAddr)
	before := f.balance(daiAddr, buyer2)

	ticket := f.pay(buyer2, Payment{ProductID: 256})
	refunded, err := f.engine.RefundProduct(ctx, admin, ticket.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != TicketRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if got := f.balance(daiAddr, buyer2); got.Cmp(before) != 0 {
		t.Fatalf("buyer balance not restored: before=%s after=%s", before, got)
	}
	if fee, _ := f.engine.ClaimableFee(daiAddr); fee.Cmp(feeBefore) != 0 {
		t.Fatalf("refund changed claimable fee: %s -> %s", feeBefore, fee)
	}
	f.checkConservation(daiAddr)

	_, err = f.engine.RefundProduct(ctx, admin, common.Hash{})
	expectErr(t, err, coreerrors.ErrTicketID)
	_, err = f.engine.RefundProduct(ctx, admin, common.HexToHash("0x0a02"))
	expectErr(t, err, coreerrors.ErrNotExist)
}

func TestClaimFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(256, daiAddr, units(180), 5)
	ticket := f.pay(buyer, Payment{ProductID: 256})
	if _, err := f.engine.ReleasePay(ctx, admin, ticket.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	claimable, _ := f.engine.ClaimableFee(daiAddr)

	err := f.engine.ClaimFees(ctx, admin, daiAddr, new(big.Int).Add(claimable, big.NewInt(1)))
	expectErr(t, err, coreerrors.ErrInsufficientFunds)
	expectErr(t, f.engine.ClaimFees(ctx, seller, daiAddr, claimable), coreerrors.ErrNotAdmin)

	if err := f.engine.ClaimFees(ctx, admin, daiAddr, claimable); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if fee, _ := f.engine.ClaimableFee(daiAddr); fee.Sign() != 0 {
		t.Fatalf("expected drained bucket, got %s", fee)
	}
	if got := f.balance(daiAddr, admin); got.Cmp(claimable) != 0 {
		t.Fatalf("admin should hold %s, got %s", claimable, got)
	}
	f.checkConservation(daiAddr)
}

func TestShippingAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(7, daiAddr, units(50), 3)

	nonce, err := f.engine.ShippingNonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	auth := shipping.Authorization{ProductID: 7, Buyer: buyer, Cost: units(5), Nonce: nonce}
	sig, err := shipping.Sign(f.signer, auth, testDomain)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	payment := Payment{ProductID: 7, ShippingCost: units(5), ShippingNonce: nonce, Signature: sig}
	ticket := f.pay(buyer, payment)
	if ticket.ShippingCost.Cmp(units(5)) != 0 {
		t.Fatalf("expected shipping 5, got %s", ticket.ShippingCost)
	}
	if got := f.balance(daiAddr, buyer); got.Cmp(units(10_000-55)) != 0 {
		t.Fatalf("buyer should pay price plus shipping, balance %s", got)
	}

	_, err = f.engine.PayProduct(ctx, buyer, payment)
	expectErr(t, err, coreerrors.ErrSignedMessage)

	stranger, _ := ethcrypto.ToECDSA(bytes.Repeat([]byte{0x77}, 32))
	forged, _ := shipping.Sign(stranger, shipping.Authorization{ProductID: 7, Buyer: buyer, Cost: units(1), Nonce: 1}, testDomain)
	_, err = f.engine.PayProduct(ctx, buyer, Payment{ProductID: 7, ShippingCost: units(1), ShippingNonce: 1, Signature: forged})
	expectErr(t, err, coreerrors.ErrAllowedSigner)

	// The authorization is bound to the buyer it was issued for.
	_, err = f.engine.PayProduct(ctx, buyer2, Payment{ProductID: 7, ShippingCost: units(1), ShippingNonce: 1})
	expectErr(t, err, coreerrors.ErrAllowedSigner)

	if _, err := f.engine.ReleasePay(ctx, admin, ticket.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ship, _ := f.engine.ClaimableShippingCost(daiAddr); ship.Cmp(units(5)) != 0 {
		t.Fatalf("expected claimable shipping 5, got %s", ship)
	}
	if got := f.balance(daiAddr, seller); got.Cmp(units(45)) != 0 {
		t.Fatalf("seller receives price minus fee only, got %s", got)
	}
	f.checkConservation(daiAddr)
	if err := f.engine.ClaimShippingCost(ctx, admin, daiAddr, units(5)); err != nil {
		t.Fatalf("claim shipping: %v", err)
	}
	f.checkConservation(daiAddr)
}

func TestFeeTimeLockAndSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.ImplementFee(ctx, admin)
	expectErr(t, err, coreerrors.ErrNotPrepared)

	f.submit(256, daiAddr, units(180), 5)
	ticket := f.pay(buyer, Payment{ProductID: 256})

	if _, err := f.engine.PrepareFee(ctx, seller, units(20)); !errors.Is(err, coreerrors.ErrNotAdmin) {
		t.Fatalf("expected !admin, got %v", err)
	}
	cfg, err := f.engine.PrepareFee(ctx, admin, units(20))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if cfg.UnlockAt != uint64(f.now)+fees.LockPeriod {
		t.Fatalf("unexpected unlock %d", cfg.UnlockAt)
	}
	f.now += int64(fees.LockPeriod) - 1
	_, err = f.engine.ImplementFee(ctx, admin)
	expectErr(t, err, coreerrors.ErrNotUnlocked)

	f.now++
	if _, err := f.engine.ImplementFee(ctx, admin); err != nil {
		t.Fatalf("implement: %v", err)
	}
	current, _ := f.engine.Fee()
	if current.Current.Cmp(units(20)) != 0 {
		t.Fatalf("expected fee 20%%, got %s", current.Current)
	}

	stored, _ := f.engine.Ticket(ticket.ID)
	if stored.FeeCharged.Cmp(units(18)) != 0 {
		t.Fatalf("fee snapshot changed to %s", stored.FeeCharged)
	}
	if _, err := f.engine.ReleasePay(ctx, admin, ticket.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := f.balance(daiAddr, seller); got.Cmp(units(162)) != 0 {
		t.Fatalf("release must use the snapshotted fee, seller got %s", got)
	}
	next := f.pay(buyer, Payment{ProductID: 256})
	if next.FeeCharged.Cmp(units(36)) != 0 {
		t.Fatalf("new tickets use the new fee, got %s", next.FeeCharged)
	}
}

func TestTicketIDsUniqueAndIndexed(t *testing.T) {
	f := newFixture(t)
	f.submit(256, daiAddr, units(1), 10)
	f.submit(300, daiAddr, units(1), 10)
	seen := map[common.Hash]bool{}
	var mine []common.Hash
	for i := 0; i < 4; i++ {
		ticket := f.pay(buyer, Payment{ProductID: 256})
		if seen[ticket.ID] {
			t.Fatalf("duplicate ticket id %s", ticket.ID.Hex())
		}
		seen[ticket.ID] = true
		mine = append(mine, ticket.ID)
	}
	other := f.pay(buyer2, Payment{ProductID: 300})

	byProduct, _ := f.engine.TicketsIDsByProduct(256)
	if len(byProduct) != 4 {
		t.Fatalf("expected 4 tickets for product, got %d", len(byProduct))
	}
	for i := range mine {
		if byProduct[i] != mine[i] {
			t.Fatalf("index out of order at %d", i)
		}
	}
	byBuyer, _ := f.engine.TicketsIDsByAddress(buyer2)
	if len(byBuyer) != 1 || byBuyer[0] != other.ID {
		t.Fatalf("unexpected buyer index %v", byBuyer)
	}
	all, _ := f.engine.TicketsIDs()
	if len(all) != 5 || all[4] != other.ID {
		t.Fatalf("unexpected global index %v", all)
	}
	products, _ := f.engine.ProductsIDs()
	if len(products) != 2 || products[0] != 256 || products[1] != 300 {
		t.Fatalf("unexpected product index %v", products)
	}
}

func TestNativePayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(9, bank.Native, units(2), 2)
	f.submit(10, daiAddr, units(2), 2)

	_, err := f.engine.PayProduct(ctx, buyer, Payment{ProductID: 9, Value: big.NewInt(0)})
	expectErr(t, err, coreerrors.ErrValue)
	_, err = f.engine.PayProduct(ctx, buyer, Payment{ProductID: 9, Value: units(3)})
	expectErr(t, err, coreerrors.ErrValue)
	_, err = f.engine.PayProduct(ctx, buyer, Payment{ProductID: 10, Value: units(2)})
	expectErr(t, err, coreerrors.ErrValue)

	ticket := f.pay(buyer, Payment{ProductID: 9, Value: units(2)})
	if got := f.balance(bank.Native, buyer); got.Cmp(units(98)) != 0 {
		t.Fatalf("buyer native balance %s", got)
	}
	f.checkConservation(bank.Native)
	if _, err := f.engine.ReleasePay(ctx, admin, ticket.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	fee, _ := f.engine.ClaimableFee(bank.Native)
	if fee.Cmp(new(big.Int).Div(units(2), big.NewInt(10))) != 0 {
		t.Fatalf("unexpected native fee %s", fee)
	}
	f.checkConservation(bank.Native)
	if err := f.engine.ClaimFees(ctx, admin, bank.Native, fee); err != nil {
		t.Fatalf("claim native: %v", err)
	}
	f.checkConservation(bank.Native)
}

func TestPayRejectsUnavailableProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.PayProduct(ctx, buyer, Payment{ProductID: 5656})
	expectErr(t, err, coreerrors.ErrNotExist)

	f.submit(1, daiAddr, units(1), 1)
	if err := f.engine.SwitchEnable(ctx, admin, 1, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	_, err = f.engine.PayProduct(ctx, buyer, Payment{ProductID: 1})
	expectErr(t, err, coreerrors.ErrNotEnabled)
	if err := f.engine.SwitchEnable(ctx, admin, 1, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	f.pay(buyer, Payment{ProductID: 1})
	_, err = f.engine.PayProduct(ctx, buyer, Payment{ProductID: 1})
	expectErr(t, err, coreerrors.ErrOutOfStock)
}

func TestFailedTransferLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(256, daiAddr, units(180), 5)
	poor := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	seqBefore, _ := f.engine.Sequence()
	eventsBefore := len(f.rec.events)

	_, err := f.engine.PayProduct(ctx, poor, Payment{ProductID: 256})
	if !errors.Is(err, bank.ErrInsufficientAllowance) {
		t.Fatalf("expected the bank error unmodified, got %v", err)
	}
	product, _ := f.engine.Product(256)
	if product.Stock != 5 {
		t.Fatalf("stock changed on failed payment: %d", product.Stock)
	}
	if ids, _ := f.engine.TicketsIDs(); len(ids) != 0 {
		t.Fatalf("ticket persisted on failed payment")
	}
	if seq, _ := f.engine.Sequence(); seq != seqBefore {
		t.Fatalf("sequence advanced on failed payment")
	}
	if len(f.rec.events) != eventsBefore {
		t.Fatalf("events emitted for a failed payment: %v", f.rec.types()[eventsBefore:])
	}
}

// reentrantFunds calls back into the engine from inside a transfer. With
// fresh set it drops the context it was handed.
type reentrantFunds struct {
	Funds
	engine *Engine
	fresh  bool
	err    error
}

func (r *reentrantFunds) callback(ctx context.Context) error {
	if r.fresh {
		ctx = context.Background()
	}
	r.err = r.engine.AddStock(ctx, admin, 256, 1)
	return r.err
}

func (r *reentrantFunds) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if err := r.callback(ctx); err != nil {
		return err
	}
	return r.Funds.Transfer(ctx, token, from, to, amount)
}

func (r *reentrantFunds) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *big.Int) error {
	if err := r.callback(ctx); err != nil {
		return err
	}
	return r.Funds.TransferFrom(ctx, token, spender, from, to, amount)
}

// withinDeadline fails the test instead of hanging when fn deadlocks.
func withinDeadline(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("operation blocked on the engine lock")
	}
}

func TestReentrantFundsRejected(t *testing.T) {
	for _, fresh := range []bool{false, true} {
		f := newFixture(t)
		f.submit(256, daiAddr, units(180), 5)
		hook := &reentrantFunds{engine: f.engine, fresh: fresh}
		f.engine.SetFunds(func(kv state.KV, emitter events.Emitter) Funds {
			hook.Funds = DefaultFunds(kv, emitter)
			return hook
		})
		var err error
		withinDeadline(t, func() {
			_, err = f.engine.PayProduct(context.Background(), buyer, Payment{ProductID: 256})
		})
		expectErr(t, err, ErrReentrant)
		if !errors.Is(hook.err, ErrReentrant) {
			t.Fatalf("fresh=%v: nested call should have been rejected, got %v", fresh, hook.err)
		}
		product, _ := f.engine.Product(256)
		if product.Stock != 5 {
			t.Fatalf("fresh=%v: reentrant payment must be discarded, stock %d", fresh, product.Stock)
		}
	}
}

func TestReentrantClaimLeavesEngineUsable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(256, daiAddr, units(180), 5)
	hook := &reentrantFunds{engine: f.engine, fresh: true}
	f.engine.SetFunds(func(kv state.KV, emitter events.Emitter) Funds {
		hook.Funds = DefaultFunds(kv, emitter)
		return hook
	})
	var err error
	withinDeadline(t, func() { err = f.engine.ClaimFees(ctx, admin, daiAddr, big.NewInt(0)) })
	expectErr(t, err, ErrReentrant)

	f.engine.SetFunds(nil)
	withinDeadline(t, func() { err = f.engine.AddStock(ctx, admin, 256, 1) })
	if err != nil {
		t.Fatalf("engine unusable after a rejected callback: %v", err)
	}
	product, _ := f.engine.Product(256)
	if product.Stock != 6 {
		t.Fatalf("expected stock 6, got %d", product.Stock)
	}
}

func TestSettlementIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submit(256, daiAddr, units(180), 5)
	ticket := f.pay(buyer, Payment{ProductID: 256})
	_, err := f.engine.ReleasePay(ctx, buyer, ticket.ID)
	expectErr(t, err, coreerrors.ErrNotAdmin)
	_, err = f.engine.RefundProduct(ctx, seller, ticket.ID)
	expectErr(t, err, coreerrors.ErrNotAdmin)
	expectErr(t, f.engine.SetAllowedSigner(ctx, seller, seller), coreerrors.ErrNotAdmin)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	f := newFixture(t)
	f.rec.events = nil
	f.submit(256, daiAddr, units(180), 5)
	f.pay(buyer, Payment{ProductID: 256})
	types := f.rec.types()
	want := []string{events.TypeProductSubmitted, events.TypeTransfer, events.TypeTicketCreated}
	if len(types) != len(want) {
		t.Fatalf("unexpected events %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestNewEngineKeepsPersistedState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.PrepareFee(ctx, admin, units(3)); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	f.now += int64(fees.LockPeriod)
	if _, err := f.engine.ImplementFee(ctx, admin); err != nil {
		t.Fatalf("implement: %v", err)
	}
	other := common.HexToAddress("0x0000000000000000000000000000000000000999")
	reopened, err := NewEngine(f.mgr, Params{Admin: admin, Custody: custody, InitialFee: units(10), AllowedSigner: other})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cfg, _ := reopened.Fee()
	if cfg.Current.Cmp(units(3)) != 0 {
		t.Fatalf("reopen reset the fee to %s", cfg.Current)
	}
	signer, _ := reopened.AllowedSigner()
	if signer != ethcrypto.PubkeyToAddress(f.signer.PublicKey) {
		t.Fatalf("reopen replaced the signer with %s", signer.Hex())
	}
}

func TestNewEngineValidatesParams(t *testing.T) {
	mgr := state.NewManager(storage.NewMemDB())
	if _, err := NewEngine(mgr, Params{Custody: custody}); err == nil {
		t.Fatalf("expected missing admin error")
	}
	if _, err := NewEngine(mgr, Params{Admin: admin}); err == nil {
		t.Fatalf("expected missing custody error")
	}
	if _, err := NewEngine(mgr, Params{Admin: admin, Custody: custody, InitialFee: units(101)}); err == nil {
		t.Fatalf("expected fee range error")
	}
}

func TestApplyGenesisIsAtomic(t *testing.T) {
	engine, err := NewEngine(state.NewManager(storage.NewMemDB()), Params{Admin: admin, Custody: custody})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	ctx := context.Background()
	broken := []Allocation{
		{Token: daiAddr, To: buyer, Amount: units(100)},
		{Token: daiAddr, To: common.Address{}, Amount: units(1)},
	}
	if _, err := engine.ApplyGenesis(ctx, broken); !errors.Is(err, bank.ErrZeroRecipient) {
		t.Fatalf("expected zero recipient error, got %v", err)
	}
	if bal, _ := engine.Balance(daiAddr, buyer); bal.Sign() != 0 {
		t.Fatalf("failed genesis left a partial balance %s", bal)
	}
	if seq, _ := engine.Sequence(); seq != 0 {
		t.Fatalf("failed genesis advanced the sequence to %d", seq)
	}

	allocations := []Allocation{
		{Token: daiAddr, To: buyer, Amount: units(100)},
		{To: buyer2, Amount: big.NewInt(7)},
	}
	applied, err := engine.ApplyGenesis(ctx, allocations)
	if err != nil || !applied {
		t.Fatalf("genesis: applied=%v err=%v", applied, err)
	}
	applied, err = engine.ApplyGenesis(ctx, allocations)
	if err != nil || applied {
		t.Fatalf("second genesis: applied=%v err=%v", applied, err)
	}
	if bal, _ := engine.Balance(daiAddr, buyer); bal.Cmp(units(100)) != 0 {
		t.Fatalf("expected 100 DAI, got %s", bal)
	}
	if bal, _ := engine.Balance(common.Address{}, buyer2); bal.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("expected 7 native, got %s", bal)
	}
}

func TestApplyGenesisSkipsUsedLedger(t *testing.T) {
	f := newFixture(t)
	f.submit(256, daiAddr, units(180), 5)
	applied, err := f.engine.ApplyGenesis(context.Background(), []Allocation{{To: buyer2, Amount: big.NewInt(7)}})
	if err != nil || applied {
		t.Fatalf("expected genesis to be skipped, applied=%v err=%v", applied, err)
	}
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pis/pis/internal/domain/catalog"
	"github.com/pis/pis/internal/platform/db"
)

// -- Mocks --

type mockBatchRepo struct {
	batches []*Batch
	seq     int
}

func (m *mockBatchRepo) eligible(b *Batch, today time.Time) bool {
	return b.RemainingUom.IsPositive() &&
		!b.Quarantined &&
		(b.ExpiryDate == nil || !b.ExpiryDate.Before(today))
}

func (m *mockBatchRepo) Insert(_ context.Context, _ *db.UnitOfWork, b *Batch) error {
	b.ID = uuid.New()
	if b.ReceivedAt.IsZero() {
		m.seq++
		b.ReceivedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	}
	m.batches = append(m.batches, b)
	return nil
}

func (m *mockBatchRepo) EligibleRemaining(_ context.Context, _ db.Queryer, drugID, packageID uuid.UUID, today time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range m.batches {
		if b.DrugID == drugID && b.PackageID == packageID && m.eligible(b, today) {
			total = total.Add(b.RemainingUom)
		}
	}
	return total, nil
}

func (m *mockBatchRepo) SelectForAllocation(_ context.Context, _ *db.UnitOfWork, drugID, packageID uuid.UUID, today time.Time) ([]*Batch, error) {
	var result []*Batch
	for _, b := range m.batches {
		if b.DrugID == drugID && b.PackageID == packageID && m.eligible(b, today) {
			result = append(result, b)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.ReceivedAt.Before(b.ReceivedAt)
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ReceivedAt.Before(b.ReceivedAt)
		default:
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	})
	return result, nil
}

func (m *mockBatchRepo) Deduct(_ context.Context, _ *db.UnitOfWork, batchID uuid.UUID, amount decimal.Decimal) error {
	for _, b := range m.batches {
		if b.ID == batchID {
			if b.RemainingUom.LessThan(amount) {
				return fmt.Errorf("deduct from batch %s: %w", batchID, ErrStockRace)
			}
			b.RemainingUom = b.RemainingUom.Sub(amount)
			return nil
		}
	}
	return fmt.Errorf("batch %s not found", batchID)
}

func (m *mockBatchRepo) LatestUnitCost(_ context.Context, _ db.Queryer, packageID uuid.UUID) (decimal.Decimal, bool, error) {
	var latest *Batch
	for _, b := range m.batches {
		if b.PackageID != packageID {
			continue
		}
		if latest == nil || b.ReceivedAt.After(latest.ReceivedAt) {
			latest = b
		}
	}
	if latest == nil || latest.UnitCost == nil {
		return decimal.Zero, false, nil
	}
	return *latest.UnitCost, true, nil
}

func (m *mockBatchRepo) Snapshot(_ context.Context, _ db.Queryer) ([]*DrugStock, error) {
	type key struct{ drug, pkg uuid.UUID }
	agg := map[key]*PackageStock{}
	var keys []key
	for _, b := range m.batches {
		k := key{b.DrugID, b.PackageID}
		ps, ok := agg[k]
		if !ok {
			ps = &PackageStock{PackageID: b.PackageID}
			agg[k] = ps
			keys = append(keys, k)
		}
		ps.TotalEntered = ps.TotalEntered.Add(b.QuantityUom)
		ps.TotalRemaining = ps.TotalRemaining.Add(b.RemainingUom)
	}

	byDrug := map[uuid.UUID]*DrugStock{}
	var result []*DrugStock
	for _, k := range keys {
		ps := agg[k]
		ps.Status = classifyStock(ps.TotalEntered, ps.TotalRemaining)
		ds, ok := byDrug[k.drug]
		if !ok {
			ds = &DrugStock{DrugID: k.drug}
			byDrug[k.drug] = ds
			result = append(result, ds)
		}
		ds.Packages = append(ds.Packages, *ps)
	}
	return result, nil
}

// mockResolver maps every package onto a single base package with a fixed
// multiplier per package id.
type mockResolver struct {
	base        uuid.UUID
	multipliers map[uuid.UUID]int64
}

func (m *mockResolver) ResolveBaseUnits(_ context.Context, packageID uuid.UUID, qty decimal.Decimal) (decimal.Decimal, error) {
	mult, ok := m.multipliers[packageID]
	if !ok {
		return decimal.Zero, fmt.Errorf("package %s not found", packageID)
	}
	return qty.Mul(decimal.NewFromInt(mult)), nil
}

func (m *mockResolver) ResolveBasePackage(_ context.Context, packageID uuid.UUID) (uuid.UUID, error) {
	if _, ok := m.multipliers[packageID]; !ok {
		return uuid.Nil, fmt.Errorf("package %s not found", packageID)
	}
	return m.base, nil
}

// mockCatalog knows which drugs exist and which drug each package belongs
// to.
type mockCatalog struct {
	drugs  map[uuid.UUID]string
	owners map[uuid.UUID]uuid.UUID
}

func (m *mockCatalog) DrugName(_ context.Context, drugID uuid.UUID) (string, error) {
	name, ok := m.drugs[drugID]
	if !ok {
		return "", catalog.ErrDrugNotFound
	}
	return name, nil
}

func (m *mockCatalog) PackageOwner(_ context.Context, packageID uuid.UUID) (uuid.UUID, error) {
	owner, ok := m.owners[packageID]
	if !ok {
		return uuid.Nil, catalog.ErrPackageNotFound
	}
	return owner, nil
}

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, fn func(uow *db.UnitOfWork) error) error {
	return fn(nil)
}

type fixture struct {
	svc      *Service
	repo     *mockBatchRepo
	cat      *mockCatalog
	drugID   uuid.UUID
	boxID    uuid.UUID
	tabletID uuid.UUID
}

func newFixture() *fixture {
	repo := &mockBatchRepo{}
	drugID, boxID, tabletID := uuid.New(), uuid.New(), uuid.New()
	resolver := &mockResolver{
		base:        tabletID,
		multipliers: map[uuid.UUID]int64{boxID: 100, tabletID: 1},
	}
	cat := &mockCatalog{
		drugs:  map[uuid.UUID]string{drugID: "Paracetamol"},
		owners: map[uuid.UUID]uuid.UUID{boxID: drugID, tabletID: drugID},
	}
	return &fixture{
		svc:      NewService(repo, resolver, cat, stubRunner{}, nil, "NGN"),
		repo:     repo,
		cat:      cat,
		drugID:   drugID,
		boxID:    boxID,
		tabletID: tabletID,
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func (f *fixture) seedBatch(remaining int64, expiry *time.Time, receivedAt time.Time) *Batch {
	b := &Batch{
		DrugID:       f.drugID,
		PackageID:    f.tabletID,
		QuantityUom:  decimal.NewFromInt(remaining),
		RemainingUom: decimal.NewFromInt(remaining),
		ExpiryDate:   expiry,
		ReceivedAt:   receivedAt,
		Currency:     "NGN",
	}
	_ = f.repo.Insert(context.Background(), nil, b)
	return b
}

// -- Receive --

func TestReceive_ConvertsToBaseUnits(t *testing.T) {
	f := newFixture()
	b, err := f.svc.Receive(context.Background(), &ReceiveRequest{
		DrugID:    f.drugID,
		PackageID: f.boxID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.PackageID != f.tabletID {
		t.Errorf("batch stored at package %v, want base package %v", b.PackageID, f.tabletID)
	}
	if !b.QuantityUom.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected 200 base units, got %s", b.QuantityUom)
	}
	if !b.RemainingUom.Equal(b.QuantityUom) {
		t.Errorf("remaining %s != quantity %s", b.RemainingUom, b.QuantityUom)
	}
}

func TestReceive_UnitCostPerBaseUnit(t *testing.T) {
	f := newFixture()
	cost := decimal.NewFromInt(50)
	b, err := f.svc.Receive(context.Background(), &ReceiveRequest{
		DrugID:         f.drugID,
		PackageID:      f.boxID,
		Quantity:       2,
		CostPerPackage: &cost,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.UnitCost == nil {
		t.Fatal("expected unit cost to be set")
	}
	// 50 spread over 200 base units.
	if !b.UnitCost.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("expected unit cost 0.25, got %s", b.UnitCost)
	}
}

func TestReceive_RejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture()
	for _, qty := range []int{0, -3} {
		_, err := f.svc.Receive(context.Background(), &ReceiveRequest{
			DrugID:    f.drugID,
			PackageID: f.boxID,
			Quantity:  qty,
		})
		if err == nil {
			t.Errorf("expected error for quantity %d", qty)
		}
	}
	if len(f.repo.batches) != 0 {
		t.Errorf("expected no batch appended, got %d", len(f.repo.batches))
	}
}

func TestReceive_UnknownPackage(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Receive(context.Background(), &ReceiveRequest{
		DrugID:    f.drugID,
		PackageID: uuid.New(),
		Quantity:  1,
	})
	if err == nil {
		t.Error("expected error for unknown package")
	}
	if !errors.Is(err, catalog.ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}
}

func TestReceive_UnknownDrug(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Receive(context.Background(), &ReceiveRequest{
		DrugID:    uuid.New(),
		PackageID: f.boxID,
		Quantity:  1,
	})
	if !errors.Is(err, catalog.ErrDrugNotFound) {
		t.Errorf("expected ErrDrugNotFound, got %v", err)
	}
	if len(f.repo.batches) != 0 {
		t.Errorf("expected no batch inserted, got %d", len(f.repo.batches))
	}
}

func TestReceive_RejectsPackageOfOtherDrug(t *testing.T) {
	f := newFixture()
	otherDrug := uuid.New()
	f.cat.drugs[otherDrug] = "Amoxicillin"

	_, err := f.svc.Receive(context.Background(), &ReceiveRequest{
		DrugID:    otherDrug,
		PackageID: f.boxID, // packaging of f.drugID
		Quantity:  1,
	})
	if err == nil {
		t.Fatal("expected error for package of a different drug")
	}
	if len(f.repo.batches) != 0 {
		t.Errorf("expected no batch inserted, got %d", len(f.repo.batches))
	}
}

// -- Availability --

func TestAvailable_Boundary(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Receive(context.Background(), &ReceiveRequest{
		DrugID: f.drugID, PackageID: f.boxID, Quantity: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := f.svc.Available(context.Background(), f.drugID, f.tabletID, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected 200 units to be available")
	}

	ok, err = f.svc.Available(context.Background(), f.drugID, f.tabletID, decimal.NewFromInt(201))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected 201 units to be unavailable")
	}
}

func TestAvailable_ExcludesQuarantined(t *testing.T) {
	f := newFixture()
	b := f.seedBatch(100, nil, time.Now().UTC())
	b.Quarantined = true

	ok, err := f.svc.Available(context.Background(), f.drugID, f.tabletID, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("quarantined stock must not count as available")
	}
}

func TestAvailable_ExcludesExpired(t *testing.T) {
	f := newFixture()
	f.seedBatch(100, date(2020, time.January, 1), time.Now().UTC())

	ok, err := f.svc.Available(context.Background(), f.drugID, f.tabletID, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expired stock must not count as available")
	}
}

// -- Allocation --

func TestAllocate_FEFOOrder(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	a := f.seedBatch(10, date(2026, time.March, 2), asOf.Add(-48*time.Hour))
	b := f.seedBatch(50, date(2026, time.March, 6), asOf.Add(-72*time.Hour))

	err := f.svc.Allocate(context.Background(), nil, f.drugID, f.tabletID, decimal.NewFromInt(30), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.RemainingUom.IsZero() {
		t.Errorf("expected earliest-expiry batch drained, remaining %s", a.RemainingUom)
	}
	if !b.RemainingUom.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected later batch at 30, got %s", b.RemainingUom)
	}
}

func TestAllocate_TieBreakOnReceivedAt(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	expiry := date(2026, time.June, 1)
	newer := f.seedBatch(40, expiry, asOf.Add(-24*time.Hour))
	older := f.seedBatch(40, expiry, asOf.Add(-48*time.Hour))

	err := f.svc.Allocate(context.Background(), nil, f.drugID, f.tabletID, decimal.NewFromInt(10), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !older.RemainingUom.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected older batch deducted first, remaining %s", older.RemainingUom)
	}
	if !newer.RemainingUom.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected newer batch untouched, remaining %s", newer.RemainingUom)
	}
}

func TestAllocate_NullExpiryLast(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	dated := f.seedBatch(20, date(2026, time.April, 1), asOf)
	undated := f.seedBatch(20, nil, asOf.Add(-time.Hour))

	err := f.svc.Allocate(context.Background(), nil, f.drugID, f.tabletID, decimal.NewFromInt(20), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dated.RemainingUom.IsZero() {
		t.Errorf("expected dated batch consumed first, remaining %s", dated.RemainingUom)
	}
	if !undated.RemainingUom.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected undated batch untouched, remaining %s", undated.RemainingUom)
	}
}

func TestAllocate_SkipsExpired(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	expired := f.seedBatch(100, date(2026, time.February, 1), asOf)
	fresh := f.seedBatch(30, date(2026, time.June, 1), asOf)

	err := f.svc.Allocate(context.Background(), nil, f.drugID, f.tabletID, decimal.NewFromInt(20), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !expired.RemainingUom.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expired batch must not be touched, remaining %s", expired.RemainingUom)
	}
	if !fresh.RemainingUom.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected fresh batch at 10, got %s", fresh.RemainingUom)
	}
}

func TestAllocate_SkipsQuarantined(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	held := f.seedBatch(100, date(2026, time.June, 1), asOf)
	held.Quarantined = true
	free := f.seedBatch(30, date(2026, time.July, 1), asOf)

	err := f.svc.Allocate(context.Background(), nil, f.drugID, f.tabletID, decimal.NewFromInt(20), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !held.RemainingUom.Equal(decimal.NewFromInt(100)) {
		t.Errorf("quarantined batch must not be touched, remaining %s", held.RemainingUom)
	}
	if !free.RemainingUom.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected free batch at 10, got %s", free.RemainingUom)
	}
}

func TestAllocate_ShortfallIsRace(t *testing.T) {
	f := newFixture()
	asOf := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	f.seedBatch(10, date(2026, time.June, 1), asOf)

	err := f.svc.Allocate(context.Background(), nil, f.drugID, f.tabletID, decimal.NewFromInt(25), asOf)
	if !errors.Is(err, ErrStockRace) {
		t.Errorf("expected ErrStockRace, got %v", err)
	}
}

// -- Snapshot --

func TestSnapshot_StatusThresholds(t *testing.T) {
	f := newFixture()
	out := f.seedBatch(100, nil, time.Now().UTC())
	out.RemainingUom = decimal.Zero

	snapshot, err := f.svc.Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot) != 1 || len(snapshot[0].Packages) != 1 {
		t.Fatalf("expected one drug with one package, got %+v", snapshot)
	}
	if snapshot[0].Packages[0].Status != StatusOutOfStock {
		t.Errorf("expected OUT_OF_STOCK, got %s", snapshot[0].Packages[0].Status)
	}

	out.RemainingUom = decimal.NewFromInt(19) // under 20% of 100
	snapshot, _ = f.svc.Snapshot(context.Background(), nil)
	if snapshot[0].Packages[0].Status != StatusLowStock {
		t.Errorf("expected LOW_STOCK, got %s", snapshot[0].Packages[0].Status)
	}

	out.RemainingUom = decimal.NewFromInt(20) // exactly 20%
	snapshot, _ = f.svc.Snapshot(context.Background(), nil)
	if snapshot[0].Packages[0].Status != StatusOK {
		t.Errorf("expected OK at the 20%% boundary, got %s", snapshot[0].Packages[0].Status)
	}
}

func TestSnapshot_StatusFilter(t *testing.T) {
	f := newFixture()
	empty := f.seedBatch(50, nil, time.Now().UTC())
	empty.RemainingUom = decimal.Zero

	filter := StatusOK
	snapshot, err := f.svc.Snapshot(context.Background(), &filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot) != 0 {
		t.Errorf("expected drug filtered out entirely, got %+v", snapshot)
	}
}

func TestSnapshot_IdempotentRead(t *testing.T) {
	f := newFixture()
	f.seedBatch(100, nil, time.Now().UTC())

	first, err := f.svc.Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.Snapshot(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("snapshot changed between reads: %d vs %d drugs", len(first), len(second))
	}
	for i := range first {
		if len(first[i].Packages) != len(second[i].Packages) {
			t.Fatalf("package aggregates changed between reads")
		}
		for j := range first[i].Packages {
			a, b := first[i].Packages[j], second[i].Packages[j]
			if !a.TotalRemaining.Equal(b.TotalRemaining) || a.Status != b.Status {
				t.Errorf("aggregate %d/%d differs between reads", i, j)
			}
		}
	}
}

// -- Cost --

func TestLineCost_LatestCost(t *testing.T) {
	f := newFixture()
	oldCost := decimal.NewFromFloat(0.10)
	newCost := decimal.NewFromFloat(0.25)
	older := f.seedBatch(100, nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	older.UnitCost = &oldCost
	newer := f.seedBatch(100, nil, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	newer.UnitCost = &newCost

	cost, err := f.svc.LineCost(context.Background(), f.tabletID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cost.Equal(decimal.NewFromInt(10)) { // 40 × 0.25
		t.Errorf("expected cost 10, got %s", cost)
	}
}

func TestLineCost_NoBatches(t *testing.T) {
	f := newFixture()
	cost, err := f.svc.LineCost(context.Background(), f.tabletID, decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cost.IsZero() {
		t.Errorf("expected zero cost with no batches, got %s", cost)
	}
}

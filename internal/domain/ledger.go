package domain

import "fmt"

// PurchaseLot is one buy order's worth of holdings, tracked against its own
// reference price. The reference starts at the price paid and ratchets up
// as the lot gains.
type PurchaseLot struct {
	Amount         float64         `json:"amount"`
	ReferencePrice float64         `json:"reference_price"`
	PricePaid      float64         `json:"price_paid"`
	State          PercentageState `json:"state"`
}

// NewPurchaseLot returns a Neutral lot whose reference equals the price paid.
func NewPurchaseLot(amount, pricePaid float64) PurchaseLot {
	return PurchaseLot{
		Amount:         amount,
		ReferencePrice: pricePaid,
		PricePaid:      pricePaid,
		State:          StateNeutral,
	}
}

// Percentage returns the lot's move against its own reference price.
func (l PurchaseLot) Percentage(current float64) (float64, error) {
	return PercentChange(current, l.ReferencePrice)
}

// Ledger is the ordered list of open lots for one asset. Lots are addressed by
// position for in-place updates and removed by value.
type Ledger struct {
	lots []PurchaseLot
}

func NewLedger(lots ...PurchaseLot) *Ledger {
	l := &Ledger{}
	l.lots = append(l.lots, lots...)
	return l
}

func (l *Ledger) Len() int {
	return len(l.lots)
}

// Add appends a lot to the end of the ledger.
func (l *Ledger) Add(lot PurchaseLot) {
	l.lots = append(l.lots, lot)
}

// At returns the lot at position i.
func (l *Ledger) At(i int) (PurchaseLot, error) {
	if i < 0 || i >= len(l.lots) {
		return PurchaseLot{}, fmt.Errorf("lot index %d out of range [0,%d)", i, len(l.lots))
	}
	return l.lots[i], nil
}

func (l *Ledger) SetState(i int, s PercentageState) error {
	if i < 0 || i >= len(l.lots) {
		return fmt.Errorf("lot index %d out of range [0,%d)", i, len(l.lots))
	}
	l.lots[i].State = s
	return nil
}

func (l *Ledger) SetReferencePrice(i int, price float64) error {
	if i < 0 || i >= len(l.lots) {
		return fmt.Errorf("lot index %d out of range [0,%d)", i, len(l.lots))
	}
	l.lots[i].ReferencePrice = price
	return nil
}

// Remove deletes the first lot equal to lot and reports whether one was found.
func (l *Ledger) Remove(lot PurchaseLot) bool {
	for i, existing := range l.lots {
		if existing == lot {
			l.lots = append(l.lots[:i], l.lots[i+1:]...)
			return true
		}
	}
	return false
}

// Lots returns a copy of the ledger contents in order.
func (l *Ledger) Lots() []PurchaseLot {
	out := make([]PurchaseLot, len(l.lots))
	copy(out, l.lots)
	return out
}

// Replace swaps the whole ledger for lots, used when restoring from a backup.
func (l *Ledger) Replace(lots []PurchaseLot) {
	l.lots = make([]PurchaseLot, len(lots))
	copy(l.lots, lots)
}

// TotalAmount is the sum of the native amounts of every open lot.
func (l *Ledger) TotalAmount() float64 {
	var sum float64
	for _, lot := range l.lots {
		sum += lot.Amount
	}
	return sum
}

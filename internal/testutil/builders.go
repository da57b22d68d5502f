// Package testutil provides testing utilities and helpers for the turnaround
// prediction pipeline.
package testutil

import (
	"time"

	"github.com/craftwell/turnaround/internal/domain/model"
)

// OrderBuilder provides a fluent interface for building Order objects for testing.
type OrderBuilder struct {
	order model.Order
}

// NewOrder creates a new OrderBuilder with sensible defaults.
func NewOrder(id string) *OrderBuilder {
	return &OrderBuilder{
		order: model.Order{
			ID:         id,
			CustomerID: "CUST-001",
			IntakeAt:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
	}
}

// WithCustomer sets the customer ID.
func (b *OrderBuilder) WithCustomer(customerID string) *OrderBuilder {
	b.order.CustomerID = customerID
	return b
}

// WithIntake sets the intake timestamp.
func (b *OrderBuilder) WithIntake(at time.Time) *OrderBuilder {
	b.order.IntakeAt = at
	return b
}

// WithRequiredBy sets the promised-due date.
func (b *OrderBuilder) WithRequiredBy(at time.Time) *OrderBuilder {
	b.order.RequiredBy = &at
	return b
}

// RushStandard marks the order as a standard rush.
func (b *OrderBuilder) RushStandard() *OrderBuilder {
	b.order.RushStandard = true
	return b
}

// RushFirm marks the order as a firm-date rush.
func (b *OrderBuilder) RushFirm() *OrderBuilder {
	b.order.RushFirm = true
	return b
}

// WithRepairs sets the repairs-needed note.
func (b *OrderBuilder) WithRepairs(note string) *OrderBuilder {
	b.order.RepairsNeeded = note
	return b
}

// WithInstructions sets the special-instructions note.
func (b *OrderBuilder) WithInstructions(note string) *OrderBuilder {
	b.order.SpecialInstructions = note
	return b
}

// WithStorage sets the storage days.
func (b *OrderBuilder) WithStorage(days int) *OrderBuilder {
	b.order.StorageDays = days
	return b
}

// CleanedAfter stamps the cleaned-at date the given days after intake.
func (b *OrderBuilder) CleanedAfter(days float64) *OrderBuilder {
	at := b.order.IntakeAt.Add(durationDays(days))
	b.order.CleanedAt = &at
	return b
}

// CompletedAfter stamps the completion date the given days after intake.
func (b *OrderBuilder) CompletedAfter(days float64) *OrderBuilder {
	at := b.order.IntakeAt.Add(durationDays(days))
	b.order.CompletedAt = &at
	return b
}

// Build returns the constructed Order.
func (b *OrderBuilder) Build() model.Order {
	return b.order
}

// BuildCompleted returns the constructed order annotated with its elapsed
// days, as the dataset loader would produce it.
func (b *OrderBuilder) BuildCompleted() model.CompletedOrder {
	days, err := b.order.CompletionDays()
	if err != nil {
		panic("testutil: BuildCompleted on an order without CompletedAfter")
	}
	return model.CompletedOrder{Order: b.order, Days: days}
}

func durationDays(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour))
}

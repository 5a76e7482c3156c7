// Package submission drives a bulk filing batch into the CRM: one contact per
// client, ordered progress, partial failure accounting and a single order
// confirmation per batch.
package submission

import (
	"fmt"
	"strings"
	"time"

	"nylta-workers/internal/models"

	"github.com/google/uuid"
)

// Firm identifies the filing firm that owns a batch. ParentFirmID is the
// firm's CRM contact id.
type Firm struct {
	ParentFirmID string `json:"parentFirmId"`
	Name         string `json:"firmName"`
	Email        string `json:"firmEmail"`
}

type Batch struct {
	ID          string
	OrderNumber string
	CreatedAt   time.Time
	Firm        Firm
	Clients     []models.Client
	Attestation models.AttestationData

	// 1-based position of each client in the original order
	positions []int
}

func NewBatch(firm Firm, clients []models.Client, attestation models.AttestationData, now time.Time) *Batch {
	id := uuid.NewString()
	positions := make([]int, len(clients))
	for i := range positions {
		positions[i] = i + 1
	}
	return &Batch{
		ID:          id,
		OrderNumber: OrderNumber(id, now),
		CreatedAt:   now,
		Firm:        firm,
		Clients:     clients,
		Attestation: attestation,
		positions:   positions,
	}
}

// Subset returns a batch over the given clients with a new batch id, the same
// order number and each client's original submission number.
func (b *Batch) Subset(clients []models.Client, now time.Time) *Batch {
	positions := make([]int, len(clients))
	for i := range clients {
		positions[i] = b.positionOf(&clients[i])
	}
	return &Batch{
		ID:          uuid.NewString(),
		OrderNumber: b.OrderNumber,
		CreatedAt:   now,
		Firm:        b.Firm,
		Clients:     clients,
		Attestation: b.Attestation,
		positions:   positions,
	}
}

// SubmissionNumber is the order number suffixed with the client's position.
func (b *Batch) SubmissionNumber(i int) string {
	return SubmissionNumber(b.OrderNumber, b.SubmissionPosition(i))
}

func (b *Batch) positionOf(c *models.Client) int {
	for i := range b.Clients {
		if b.Clients[i].ID != "" && b.Clients[i].ID == c.ID {
			return b.SubmissionPosition(i)
		}
	}
	for i := range b.Clients {
		if b.Clients[i].LLCName == c.LLCName {
			return b.SubmissionPosition(i)
		}
	}
	return 0
}

// SubmissionPosition is the 1-based position of client i in the original batch.
func (b *Batch) SubmissionPosition(i int) int {
	if i < len(b.positions) && b.positions[i] > 0 {
		return b.positions[i]
	}
	return i + 1
}

// OrderNumber formats NYLTA-<yyyymmdd>-<first 8 of the batch id, upper case>.
func OrderNumber(batchID string, at time.Time) string {
	short := strings.ReplaceAll(batchID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("NYLTA-%s-%s", at.UTC().Format("20060102"), strings.ToUpper(short))
}

func SubmissionNumber(orderNumber string, position int) string {
	return fmt.Sprintf("%s-%03d", orderNumber, position)
}

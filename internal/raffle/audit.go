package raffle

import (
	"context"
	"fmt"

	"tikka/internal/ledger"
)

const auditPageSize = 256

// AuditReport compares what escrow holds in one token with what the raffles
// and the platform say it should hold.
type AuditReport struct {
	Token    ledger.Address `json:"token"`
	Escrow   ledger.Amount  `json:"escrow"`
	Held     ledger.Amount  `json:"held"`
	Accrued  ledger.Amount  `json:"accrued"`
	Raffles  int            `json:"raffles"`
	Balanced bool           `json:"balanced"`
}

// Audit checks escrow against the raffle records for token from one
// consistent snapshot. An imbalance is reported with ErrInvariant.
func (c *Contract) Audit(ctx context.Context, token ledger.Address) (AuditReport, error) {
	report := AuditReport{
		Token: token,
		Held:  ledger.ZeroAmount(),
	}
	err := c.view(ctx, func(tx ReadTx) error {
		var err error
		if report.Escrow, err = tx.Balance(token, c.escrow); err != nil {
			return err
		}
		platform, err := tx.Platform()
		if err != nil {
			return err
		}
		report.Accrued = platform.AccruedFee(token)

		var after uint64
		for {
			page, err := tx.Raffles(after, auditPageSize)
			if err != nil {
				return err
			}
			for _, raffle := range page {
				after = raffle.ID
				if raffle.PaymentToken != token {
					continue
				}
				held, err := raffle.Held()
				if err != nil {
					return err
				}
				report.Held = report.Held.Add(held)
				report.Raffles++
			}
			if len(page) < auditPageSize {
				return nil
			}
		}
	})
	if err != nil {
		return report, err
	}

	report.Balanced = report.Escrow.Equal(report.Held.Add(report.Accrued))
	if !report.Balanced {
		return report, fmt.Errorf("%w: escrow holds %s of %s, raffles and fees account for %s",
			ErrInvariant, report.Escrow.String(), token, report.Held.Add(report.Accrued).String())
	}
	return report, nil
}

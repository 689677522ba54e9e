package scan

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Network reports chain id, head height and the suggested gas price.
func (s *Scanner) Network(ctx context.Context) (*NetworkInfo, error) {
	chainID, err := s.Client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	head, err := s.Client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block number: %w", err)
	}
	price, err := s.Client.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	wei := decimal.NewFromBigInt(price, 0)
	return &NetworkInfo{
		ChainID:     chainID.Uint64(),
		BlockNumber: head,
		GasPrice: GasPrice{
			Wei:    price,
			Gwei:   wei.Shift(-9),
			Native: wei.Shift(-18),
		},
	}, nil
}

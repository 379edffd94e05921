package pool

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/curve"
	"cpSwap/internal/lifecycle"
)

// Fee config update parameters.
const (
	ParamTradeFeeRate uint8 = iota
	ParamProtocolFeeRate
	ParamFundFeeRate
	ParamProtocolOwner
	ParamFundOwner
	ParamCreatePoolFee
	ParamDisableCreatePool
)

// AmmConfig is the fee configuration shared by every pool created under it.
type AmmConfig struct {
	ID solana.PublicKey `json:"id" rlp:"-"`

	Bump              uint8            `json:"bump"`
	DisableCreatePool bool             `json:"disable_create_pool"`
	Index             uint16           `json:"index"`
	TradeFeeRate      uint64           `json:"trade_fee_rate"`
	ProtocolFeeRate   uint64           `json:"protocol_fee_rate"`
	FundFeeRate       uint64           `json:"fund_fee_rate"`
	CreatePoolFee     uint64           `json:"create_pool_fee"`
	ProtocolOwner     solana.PublicKey `json:"protocol_owner"`
	FundOwner         solana.PublicKey `json:"fund_owner"`

	Info lifecycle.Info `json:"-" rlp:"-"`
}

func (c *AmmConfig) Key() solana.PublicKey        { return c.ID }
func (c *AmmConfig) Kind() lifecycle.Kind         { return lifecycle.KindAmmConfig }
func (c *AmmConfig) Compression() *lifecycle.Info { return &c.Info }
func (c *AmmConfig) ToCold() ([]byte, error)      { return lifecycle.EncodeBody(c) }
func (c *AmmConfig) FromCold(proof lifecycle.Proof) error {
	if proof.Kind != lifecycle.KindAmmConfig {
		return fmt.Errorf("expected %s body, got %s", lifecycle.KindAmmConfig, proof.Kind)
	}
	if err := lifecycle.DecodeBody(proof.Data, c); err != nil {
		return err
	}
	c.ID = proof.Address
	return nil
}

// Validate checks the rate bounds every config must satisfy.
func (c *AmmConfig) Validate() error {
	if c.TradeFeeRate >= curve.FeeRateDenominator {
		return fmt.Errorf("%w: trade fee rate %d", curve.ErrInvalidInput, c.TradeFeeRate)
	}
	if c.ProtocolFeeRate > curve.FeeRateDenominator {
		return fmt.Errorf("%w: protocol fee rate %d", curve.ErrInvalidInput, c.ProtocolFeeRate)
	}
	if c.FundFeeRate > curve.FeeRateDenominator {
		return fmt.Errorf("%w: fund fee rate %d", curve.ErrInvalidInput, c.FundFeeRate)
	}
	if c.ProtocolFeeRate+c.FundFeeRate > curve.FeeRateDenominator {
		return fmt.Errorf("%w: protocol %d + fund %d exceeds denominator",
			curve.ErrInvalidInput, c.ProtocolFeeRate, c.FundFeeRate)
	}
	return nil
}

// Update applies one parameter change. Owner changes read newOwner, every
// other parameter reads value. The config is left untouched on error.
func (c *AmmConfig) Update(param uint8, value uint64, newOwner solana.PublicKey) error {
	next := *c
	switch param {
	case ParamTradeFeeRate:
		next.TradeFeeRate = value
	case ParamProtocolFeeRate:
		next.ProtocolFeeRate = value
	case ParamFundFeeRate:
		next.FundFeeRate = value
	case ParamProtocolOwner:
		if newOwner.IsZero() {
			return fmt.Errorf("%w: protocol owner is empty", curve.ErrInvalidInput)
		}
		next.ProtocolOwner = newOwner
	case ParamFundOwner:
		if newOwner.IsZero() {
			return fmt.Errorf("%w: fund owner is empty", curve.ErrInvalidInput)
		}
		next.FundOwner = newOwner
	case ParamCreatePoolFee:
		next.CreatePoolFee = value
	case ParamDisableCreatePool:
		next.DisableCreatePool = value != 0
	default:
		return fmt.Errorf("%w: unknown fee config param %d", curve.ErrInvalidInput, param)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

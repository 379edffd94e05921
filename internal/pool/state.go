package pool

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"cpSwap/internal/curve"
	"cpSwap/internal/lifecycle"
)

// LockLpAmount is the LP supply minted at creation that no depositor can claim.
const LockLpAmount uint64 = 100

// LpMintDecimals is the precision of every pool's LP token.
const LpMintDecimals uint8 = 9

// ErrReserveUnderflow is returned when accrued fees exceed a vault balance.
var ErrReserveUnderflow = errors.New("accrued fees exceed vault balance")

// StatusBit indexes the operation-disable bitmask.
type StatusBit uint8

const (
	StatusDeposit StatusBit = iota
	StatusWithdraw
	StatusSwap
)

func (b StatusBit) String() string {
	switch b {
	case StatusDeposit:
		return "deposit"
	case StatusWithdraw:
		return "withdraw"
	case StatusSwap:
		return "swap"
	default:
		return fmt.Sprintf("bit(%d)", uint8(b))
	}
}

// State is the ledger record of one trading pair.
type State struct {
	ID solana.PublicKey `json:"id" rlp:"-"`

	AmmConfig      solana.PublicKey `json:"amm_config"`
	PoolCreator    solana.PublicKey `json:"pool_creator"`
	Token0Vault    solana.PublicKey `json:"token_0_vault"`
	Token1Vault    solana.PublicKey `json:"token_1_vault"`
	LpMint         solana.PublicKey `json:"lp_mint"`
	Token0Mint     solana.PublicKey `json:"token_0_mint"`
	Token1Mint     solana.PublicKey `json:"token_1_mint"`
	Token0Program  solana.PublicKey `json:"token_0_program"`
	Token1Program  solana.PublicKey `json:"token_1_program"`
	ObservationKey solana.PublicKey `json:"observation_key"`

	AuthBump       uint8 `json:"auth_bump"`
	Status         uint8 `json:"status"`
	LpMintDecimals uint8 `json:"lp_mint_decimals"`
	Mint0Decimals  uint8 `json:"mint_0_decimals"`
	Mint1Decimals  uint8 `json:"mint_1_decimals"`

	LpSupply           uint64 `json:"lp_supply"`
	ProtocolFeesToken0 uint64 `json:"protocol_fees_token_0"`
	ProtocolFeesToken1 uint64 `json:"protocol_fees_token_1"`
	FundFeesToken0     uint64 `json:"fund_fees_token_0"`
	FundFeesToken1     uint64 `json:"fund_fees_token_1"`
	OpenTime           uint64 `json:"open_time"`
	RecentEpoch        uint64 `json:"recent_epoch"`

	Info lifecycle.Info `json:"compression" rlp:"-"`
}

func (s *State) Key() solana.PublicKey        { return s.ID }
func (s *State) Kind() lifecycle.Kind         { return lifecycle.KindPool }
func (s *State) Compression() *lifecycle.Info { return &s.Info }
func (s *State) ToCold() ([]byte, error)      { return lifecycle.EncodeBody(s) }
func (s *State) FromCold(proof lifecycle.Proof) error {
	if proof.Kind != lifecycle.KindPool {
		return fmt.Errorf("expected %s body, got %s", lifecycle.KindPool, proof.Kind)
	}
	if err := lifecycle.DecodeBody(proof.Data, s); err != nil {
		return err
	}
	s.ID = proof.Address
	return nil
}

// Enabled reports whether the operation guarded by bit is allowed. A set bit
// disables it.
func (s *State) Enabled(bit StatusBit) bool {
	return s.Status&(1<<bit) == 0
}

// SetStatus replaces the whole bitmask.
func (s *State) SetStatus(status uint8) {
	s.Status = status
}

// VaultAmountWithoutFee returns both vault balances net of accrued protocol
// and fund fees.
func (s *State) VaultAmountWithoutFee(vault0, vault1 uint64) (uint64, uint64, error) {
	fees0, err := addFees(s.ProtocolFeesToken0, s.FundFeesToken0)
	if err != nil {
		return 0, 0, err
	}
	fees1, err := addFees(s.ProtocolFeesToken1, s.FundFeesToken1)
	if err != nil {
		return 0, 0, err
	}
	if fees0 > vault0 {
		return 0, 0, fmt.Errorf("%w: token 0 vault %d, fees %d", ErrReserveUnderflow, vault0, fees0)
	}
	if fees1 > vault1 {
		return 0, 0, fmt.Errorf("%w: token 1 vault %d, fees %d", ErrReserveUnderflow, vault1, fees1)
	}
	return vault0 - fees0, vault1 - fees1, nil
}

// TokenPriceX32 returns the Q32.32 price of token 0 in token 1 and the inverse.
func (s *State) TokenPriceX32(vault0, vault1 uint64) (uint128.Uint128, uint128.Uint128, error) {
	r0, r1, err := s.VaultAmountWithoutFee(vault0, vault1)
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}
	if r0 == 0 || r1 == 0 {
		return uint128.Zero, uint128.Zero, nil
	}
	price0 := uint128.From64(r1).Lsh(32).Div64(r0)
	price1 := uint128.From64(r0).Lsh(32).Div64(r1)
	return price0, price1, nil
}

// AccrueFees adds the protocol and fund share of a trade fee on the input side.
func (s *State) AccrueFees(zeroForOne bool, protocolFee, fundFee uint64) error {
	protocol, fund := &s.ProtocolFeesToken1, &s.FundFeesToken1
	if zeroForOne {
		protocol, fund = &s.ProtocolFeesToken0, &s.FundFeesToken0
	}
	p, err := addFees(*protocol, protocolFee)
	if err != nil {
		return err
	}
	f, err := addFees(*fund, fundFee)
	if err != nil {
		return err
	}
	*protocol, *fund = p, f
	return nil
}

func addFees(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, fmt.Errorf("%w: fee accumulator", curve.ErrOverflow)
	}
	return sum, nil
}

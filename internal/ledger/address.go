package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	AuthSeed        = "vault_and_lp_mint_auth_seed"
	AmmConfigSeed   = "amm_config"
	PoolSeed        = "pool"
	PoolVaultSeed   = "pool_vault"
	PoolLpMintSeed  = "pool_lp_mint"
	ObservationSeed = "observation"
)

// PoolAddresses are the program-derived addresses of one pool.
type PoolAddresses struct {
	Pool        solana.PublicKey `json:"pool"`
	Authority   solana.PublicKey `json:"authority"`
	AuthBump    uint8            `json:"auth_bump"`
	Token0Vault solana.PublicKey `json:"token_0_vault"`
	Token1Vault solana.PublicKey `json:"token_1_vault"`
	LpMint      solana.PublicKey `json:"lp_mint"`
	Observation solana.PublicKey `json:"observation"`
}

// DeriveAuthority returns the signer that owns every vault and LP mint.
func DeriveAuthority(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(AuthSeed)}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive authority: %w", err)
	}
	return addr, bump, nil
}

// DeriveAmmConfig returns the fee config address for index.
func DeriveAmmConfig(programID solana.PublicKey, index uint16) (solana.PublicKey, uint8, error) {
	idx := binary.BigEndian.AppendUint16(nil, index)
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(AmmConfigSeed), idx}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive amm config: %w", err)
	}
	return addr, bump, nil
}

// DerivePoolAddresses returns every address a pool over (mint0, mint1) uses.
func DerivePoolAddresses(programID, ammConfig, mint0, mint1 solana.PublicKey) (PoolAddresses, error) {
	var out PoolAddresses
	var err error

	out.Authority, out.AuthBump, err = DeriveAuthority(programID)
	if err != nil {
		return PoolAddresses{}, err
	}
	out.Pool, _, err = solana.FindProgramAddress([][]byte{[]byte(PoolSeed), ammConfig[:], mint0[:], mint1[:]}, programID)
	if err != nil {
		return PoolAddresses{}, fmt.Errorf("derive pool: %w", err)
	}
	out.Token0Vault, _, err = solana.FindProgramAddress([][]byte{[]byte(PoolVaultSeed), out.Pool[:], mint0[:]}, programID)
	if err != nil {
		return PoolAddresses{}, fmt.Errorf("derive token 0 vault: %w", err)
	}
	out.Token1Vault, _, err = solana.FindProgramAddress([][]byte{[]byte(PoolVaultSeed), out.Pool[:], mint1[:]}, programID)
	if err != nil {
		return PoolAddresses{}, fmt.Errorf("derive token 1 vault: %w", err)
	}
	out.LpMint, _, err = solana.FindProgramAddress([][]byte{[]byte(PoolLpMintSeed), out.Pool[:]}, programID)
	if err != nil {
		return PoolAddresses{}, fmt.Errorf("derive lp mint: %w", err)
	}
	out.Observation, _, err = solana.FindProgramAddress([][]byte{[]byte(ObservationSeed), out.Pool[:]}, programID)
	if err != nil {
		return PoolAddresses{}, fmt.Errorf("derive observation: %w", err)
	}
	return out, nil
}

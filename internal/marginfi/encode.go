package marginfi

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/ggonzalez94/mfi-cli/internal/fixed"
)

// Anchor prefixes instruction data with sha256("global:<name>")[:8] and
// account data with sha256("account:<Name>")[:8].
func instructionDiscriminator(name string) [8]byte {
	return discriminator("global:" + name)
}

func accountDiscriminator(name string) [8]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

func encodeInstruction(name string, args func(enc *bin.Encoder) error) ([]byte, error) {
	buf := new(bytes.Buffer)
	d := instructionDiscriminator(name)
	buf.Write(d[:])
	if args != nil {
		if err := args(bin.NewBorshEncoder(buf)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeFixed(enc *bin.Encoder, v fixed.I80F48) error {
	b := v.Bytes()
	return enc.WriteBytes(b[:], false)
}

func writeOptionFixed(enc *bin.Encoder, v *fixed.I80F48) error {
	if err := enc.WriteBool(v != nil); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return writeFixed(enc, *v)
}

func writeOptionPubkey(enc *bin.Encoder, v *solana.PublicKey) error {
	if err := enc.WriteBool(v != nil); err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	return enc.WriteBytes(v.Bytes(), false)
}

func (c InterestRateConfig) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, v := range []fixed.I80F48{
		c.OptimalUtilizationRate,
		c.PlateauInterestRate,
		c.MaxInterestRate,
		c.InsuranceFeeFixedAPR,
		c.InsuranceIRFee,
		c.ProtocolFixedFeeAPR,
		c.ProtocolIRFee,
	} {
		if err := writeFixed(enc, v); err != nil {
			return err
		}
	}
	return nil
}

func (c BankConfig) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, v := range []fixed.I80F48{c.DepositWeightInit, c.DepositWeightMaint, c.LiabilityWeightInit, c.LiabilityWeightMaint} {
		if err := writeFixed(enc, v); err != nil {
			return err
		}
	}
	if err := enc.WriteUint64(c.MaxCapacity, binary.LittleEndian); err != nil {
		return err
	}
	if err := enc.WriteBytes(c.PythOracle.Bytes(), false); err != nil {
		return err
	}
	if err := c.InterestRateConfig.MarshalWithEncoder(enc); err != nil {
		return err
	}
	return enc.WriteUint8(uint8(c.OperationalState))
}

func (o BankConfigOpt) MarshalWithEncoder(enc *bin.Encoder) error {
	for _, v := range []*fixed.I80F48{o.DepositWeightInit, o.DepositWeightMaint, o.LiabilityWeightInit, o.LiabilityWeightMaint} {
		if err := writeOptionFixed(enc, v); err != nil {
			return err
		}
	}
	if err := enc.WriteBool(o.MaxCapacity != nil); err != nil {
		return err
	}
	if o.MaxCapacity != nil {
		if err := enc.WriteUint64(*o.MaxCapacity, binary.LittleEndian); err != nil {
			return err
		}
	}
	if err := enc.WriteBool(o.OperationalState != nil); err != nil {
		return err
	}
	if o.OperationalState != nil {
		if err := enc.WriteUint8(uint8(*o.OperationalState)); err != nil {
			return err
		}
	}
	return writeOptionPubkey(enc, o.Oracle)
}

func (c GroupConfig) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeOptionPubkey(enc, c.Admin)
}

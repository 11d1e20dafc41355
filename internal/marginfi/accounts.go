package marginfi

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	discriminatorSize = 8
	pubkeySize        = 32

	groupAccountName = "MarginfiGroup"
	bankAccountName  = "Bank"
)

// GroupAccountMinSize covers the discriminator and admin key.
const GroupAccountMinSize = discriminatorSize + pubkeySize

// BankGroupOffset is where a bank stores its group key: after the
// discriminator, the mint and the mint decimals byte.
const BankGroupOffset = discriminatorSize + pubkeySize + 1

const BankAccountMinSize = BankGroupOffset + pubkeySize

var (
	GroupDiscriminator = accountDiscriminator(groupAccountName)
	BankDiscriminator  = accountDiscriminator(bankAccountName)
)

// GroupAccount is the decoded header of a MarginfiGroup account.
type GroupAccount struct {
	Admin solana.PublicKey
}

// BankAccount is the decoded header of a Bank account.
type BankAccount struct {
	Mint         solana.PublicKey
	MintDecimals uint8
	Group        solana.PublicKey
}

func DecodeGroup(data []byte) (GroupAccount, error) {
	if err := checkHeader(data, GroupDiscriminator, GroupAccountMinSize, groupAccountName); err != nil {
		return GroupAccount{}, err
	}
	return GroupAccount{
		Admin: solana.PublicKeyFromBytes(data[discriminatorSize : discriminatorSize+pubkeySize]),
	}, nil
}

func DecodeBank(data []byte) (BankAccount, error) {
	if err := checkHeader(data, BankDiscriminator, BankAccountMinSize, bankAccountName); err != nil {
		return BankAccount{}, err
	}
	return BankAccount{
		Mint:         solana.PublicKeyFromBytes(data[discriminatorSize : discriminatorSize+pubkeySize]),
		MintDecimals: data[discriminatorSize+pubkeySize],
		Group:        solana.PublicKeyFromBytes(data[BankGroupOffset : BankGroupOffset+pubkeySize]),
	}, nil
}

func checkHeader(data []byte, disc [8]byte, minSize int, name string) error {
	if len(data) < minSize {
		return fmt.Errorf("%s account too short: %d bytes", name, len(data))
	}
	if !bytes.Equal(data[:discriminatorSize], disc[:]) {
		return fmt.Errorf("account is not a %s", name)
	}
	return nil
}

package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Profile   string    `json:"profile,omitempty"`
	Cluster   string    `json:"cluster,omitempty"`
}

// Field is one labelled value of a human-readable rendering.
type Field struct {
	Name  string
	Value string
}

type Profile struct {
	Name          string `json:"name"`
	Active        bool   `json:"active"`
	Cluster       string `json:"cluster"`
	KeypairPath   string `json:"keypair_path"`
	RPCURL        string `json:"rpc_url"`
	ProgramID     string `json:"program_id,omitempty"`
	Commitment    string `json:"commitment,omitempty"`
	MarginfiGroup string `json:"marginfi_group,omitempty"`
}

type Group struct {
	Address   string `json:"address"`
	Admin     string `json:"admin"`
	Owner     string `json:"owner"`
	Lamports  uint64 `json:"lamports"`
	DataBytes int    `json:"data_bytes"`
}

type Bank struct {
	Address      string `json:"address"`
	Group        string `json:"group"`
	Mint         string `json:"mint"`
	MintDecimals uint8  `json:"mint_decimals"`
	Owner        string `json:"owner"`
	Lamports     uint64 `json:"lamports"`
	DataBytes    int    `json:"data_bytes"`
}

// TxResult describes a submitted transaction.
type TxResult struct {
	Signature string            `json:"signature"`
	Cluster   string            `json:"cluster"`
	Accounts  map[string]string `json:"accounts,omitempty"`
}

type JournalEntry struct {
	EntryID   string `json:"entry_id"`
	Command   string `json:"command"`
	Profile   string `json:"profile"`
	Cluster   string `json:"cluster"`
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

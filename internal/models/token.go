package models

// PendingToken is a redeemed ecash payment waiting to be paid out to the
// operator. Amount is always the summed face value of the proofs wrapped by
// the encoded token.
type PendingToken struct {
	ID     int64  `json:"id"`
	Token  string `json:"token"`
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

// MintBalance is the aggregated pending amount for one mint.
type MintBalance struct {
	Mint   string `json:"mint"`
	Amount uint64 `json:"amount"`
}

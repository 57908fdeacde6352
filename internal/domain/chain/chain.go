package chain

import (
	"math/big"
	"time"
)

// Wormhole-style numeric chain identifiers used inside the seal payload.
const (
	IDSolana   uint16 = 1
	IDEthereum uint16 = 2
	IDBSC      uint16 = 4
	IDPolygon  uint16 = 5
	IDNear     uint16 = 15
)

// Selectors accepted at the control surface.
const (
	SelectorEthereum = "ethereum"
	SelectorBSC      = "bsc"
	SelectorPolygon  = "polygon"
	SelectorNear     = "near"
)

var selectorIDs = map[string]uint16{
	SelectorEthereum: IDEthereum,
	SelectorBSC:      IDBSC,
	SelectorPolygon:  IDPolygon,
	SelectorNear:     IDNear,
}

// ID resolves a source chain selector to its numeric chain id.
func ID(selector string) (uint16, bool) {
	id, ok := selectorIDs[selector]
	return id, ok
}

// IsEVM reports whether the selector names an EVM source ledger.
func IsEVM(selector string) bool {
	switch selector {
	case SelectorEthereum, SelectorBSC, SelectorPolygon:
		return true
	}
	return false
}

// Event is one entry from a ledger's append-only event log, normalized across
// gateways. Position is the opaque cursor value that covers this event; a
// listener that commits it will not see the event again.
type Event struct {
	Position   string
	Sequence   uint64
	Type       string
	TxHash     string
	Attributes map[string]string
	EmittedAt  time.Time
}

// Attribute keys populated by the source gateways for lock events.
const (
	AttrNFTContract    = "nft_contract"
	AttrTokenID        = "token_id"
	AttrDepositAddress = "deposit_address"
	AttrTokenURI       = "token_uri"
	AttrReceiver       = "receiver"
)

// Event types emitted by the ledger programs the orchestrator listens to.
const (
	EventSealInitiated       = "seal_initiated"
	EventAttestationComplete = "attestation_complete"
)

// Payment describes a verified fee payment transaction on a source ledger.
type Payment struct {
	Signature string
	Payer     string
	Amount    *big.Int
}

// Attestation is the distributed signature over an encoded seal payload plus
// the public key it was produced under. Both are forwarded verbatim to the
// destination mint call.
type Attestation struct {
	Ready     bool
	Signature []byte
	PublicKey []byte
}

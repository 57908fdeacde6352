package seal

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"

	"github.com/sealbridge/orchestrator/internal/domain/chain"
)

// PayloadTypeSeal tags a seal attestation record on the wire.
const PayloadTypeSeal byte = 0x01

// minPayloadLen is the fixed prefix: type(1) + chain(2) + 4 * 32-byte fields.
const minPayloadLen = 131

var (
	ErrPayloadTooShort  = errors.New("seal payload shorter than 131 bytes")
	ErrBadPayloadType   = errors.New("seal payload has unknown payload type")
	ErrBadDepositHex    = errors.New("deposit address must be 32 bytes of hex")
	ErrBadReceiver      = errors.New("receiver must decode to 32 bytes")
	ErrUnknownChain     = errors.New("unknown source chain selector")
	ErrBadAttestation   = errors.New("attestation signature does not verify")
	ErrBadPublicKeySize = errors.New("attestation public key must be 32 bytes")
)

// Payload is the canonical binary record describing a locked asset and its
// destination. The encoding is fixed-offset:
//
//	0    1   payload_type  = 0x01
//	1    2   source_chain  u16 big-endian
//	3    32  nft_contract
//	35   32  token_id
//	67   32  deposit_address
//	99   32  receiver
//	131  var token_uri     raw UTF-8, no length prefix
type Payload struct {
	SourceChain    uint16
	NFTContract    [32]byte
	TokenID        [32]byte
	DepositAddress [32]byte
	Receiver       [32]byte
	TokenURI       string
}

// Encode serializes the payload into its canonical wire form.
func (p *Payload) Encode() []byte {
	buf := make([]byte, 0, minPayloadLen+len(p.TokenURI))
	buf = append(buf, PayloadTypeSeal)
	buf = binary.BigEndian.AppendUint16(buf, p.SourceChain)
	buf = append(buf, p.NFTContract[:]...)
	buf = append(buf, p.TokenID[:]...)
	buf = append(buf, p.DepositAddress[:]...)
	buf = append(buf, p.Receiver[:]...)
	buf = append(buf, []byte(p.TokenURI)...)
	return buf
}

// Parse decodes a canonical wire payload.
func Parse(b []byte) (*Payload, error) {
	if len(b) < minPayloadLen {
		return nil, ErrPayloadTooShort
	}
	if b[0] != PayloadTypeSeal {
		return nil, ErrBadPayloadType
	}
	p := &Payload{
		SourceChain: binary.BigEndian.Uint16(b[1:3]),
		TokenURI:    string(b[minPayloadLen:]),
	}
	copy(p.NFTContract[:], b[3:35])
	copy(p.TokenID[:], b[35:67])
	copy(p.DepositAddress[:], b[67:99])
	copy(p.Receiver[:], b[99:131])
	return p, nil
}

// Hash is the seal hash: SHA-256 over the encoded payload. The destination
// ledger mints at most once per hash.
func (p *Payload) Hash() [32]byte {
	return sha256.Sum256(p.Encode())
}

// HashHex returns the seal hash as lowercase hex.
func (p *Payload) HashHex() string {
	h := p.Hash()
	return hex.EncodeToString(h[:])
}

// Build assembles a payload from session-level string identifiers. Contract
// and token identifiers are encoded per source chain convention; the deposit
// address is a raw 32-byte signing key, the receiver a destination pubkey.
func Build(sourceChain, nftContract, tokenID, depositAddress, receiver, tokenURI string) (*Payload, error) {
	id, ok := chain.ID(sourceChain)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, sourceChain)
	}
	deposit, err := DecodeHex32(depositAddress)
	if err != nil {
		return nil, err
	}
	recv, err := DecodeReceiver(receiver)
	if err != nil {
		return nil, err
	}
	p := &Payload{
		SourceChain:    id,
		DepositAddress: deposit,
		Receiver:       recv,
		TokenURI:       tokenURI,
	}
	if chain.IsEVM(sourceChain) {
		p.NFTContract = EncodeEVMAddress(nftContract)
		p.TokenID = EncodeAccount(tokenID)
	} else {
		p.NFTContract = EncodeAccount(nftContract)
		p.TokenID = EncodeAccount(tokenID)
	}
	return p, nil
}

// EncodeAccount maps a variable-length ledger identifier (a NEAR account id,
// a token id string) onto 32 bytes via SHA-256.
func EncodeAccount(id string) [32]byte {
	return sha256.Sum256([]byte(id))
}

// EncodeEVMAddress left-pads a 20-byte EVM address into 32 bytes.
func EncodeEVMAddress(addr string) [32]byte {
	var out [32]byte
	a := common.HexToAddress(addr)
	copy(out[12:], a.Bytes())
	return out
}

// DecodeHex32 decodes a 64-hex-char value. Deposit addresses are raw signing
// keys and must round-trip exactly, never be hashed.
func DecodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	clean := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(clean) != 64 {
		return out, ErrBadDepositHex
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return out, ErrBadDepositHex
	}
	copy(out[:], b)
	return out, nil
}

// DecodeReceiver accepts a destination pubkey as base58 or 64-char hex.
func DecodeReceiver(s string) ([32]byte, error) {
	var out [32]byte
	if b, err := DecodeHex32(s); err == nil {
		return b, nil
	}
	decoded := base58.Decode(s)
	if len(decoded) != 32 {
		return out, ErrBadReceiver
	}
	copy(out[:], decoded)
	return out, nil
}

// VerifyAttestation checks the Ed25519 signature over the encoded payload.
// The same verification runs on the destination ledger; this is the local
// gate that keeps a bad signature from ever reaching a mint submission.
func VerifyAttestation(publicKey, payload, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return ErrBadPublicKeySize
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), payload, signature) {
		return ErrBadAttestation
	}
	return nil
}

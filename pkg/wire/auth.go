package wire

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"
	"golang.org/x/crypto/pbkdf2"
)

const scramMechanism = "SCRAM-SHA-256"
const scramIterations = 4096

// authenticate runs the configured authentication exchange after Startup
// and before the server's first ParameterStatus batch. Trust is the
// default ; RequireSCRAM switches to a SCRAM-SHA-256
// challenge per RFC 5802, the only mechanism real Postgres clients offer
// alongside MD5.
func (c *Conn) authenticate() error {
	if !c.listener.cfg.RequireSCRAM {
		return c.send(&pgproto3.AuthenticationOk{})
	}
	return c.authenticateSCRAM()
}

func (c *Conn) authenticateSCRAM() error {
	password, ok := c.listener.cfg.SCRAMUsers[c.user]
	if !ok {
		return c.sendAuthError(fmt.Sprintf("password authentication failed for user %q", c.user))
	}

	if err := c.send(&pgproto3.AuthenticationSASL{AuthMechanisms: []string{scramMechanism}}); err != nil {
		return err
	}

	initial, err := c.receiveRawPassword()
	if err != nil {
		return err
	}
	mechanism, clientFirst, err := parseSASLInitialResponse(initial)
	if err != nil {
		return c.sendAuthError(err.Error())
	}
	if mechanism != scramMechanism {
		return c.sendAuthError("unsupported SASL mechanism " + mechanism)
	}

	clientNonce, err := parseClientFirstMessage(clientFirst)
	if err != nil {
		return c.sendAuthError(err.Error())
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	serverNonce := clientNonce + base64.RawStdEncoding.EncodeToString(randomBytes(18))
	serverFirst := fmt.Sprintf("r=%s,s=%s,i=%d", serverNonce, base64.StdEncoding.EncodeToString(salt), scramIterations)

	if err := c.send(&pgproto3.AuthenticationSASLContinue{Data: []byte(serverFirst)}); err != nil {
		return err
	}

	saltedPassword := pbkdf2.Key([]byte(password), salt, scramIterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))

	authMessage := clientFirstBare(clientFirst) + "," + serverFirst

	final, err := c.receiveRawPassword()
	if err != nil {
		return err
	}
	channelBinding, finalNonce, clientProofB64, err := parseClientFinalMessage(string(final))
	if err != nil {
		return c.sendAuthError(err.Error())
	}
	if finalNonce != serverNonce {
		return c.sendAuthError("nonce mismatch")
	}
	if channelBinding != "biws" { // base64("n,,")
		return c.sendAuthError("unsupported channel binding")
	}

	clientProof, err := base64.StdEncoding.DecodeString(clientProofB64)
	if err != nil {
		return c.sendAuthError("malformed client proof")
	}
	withoutProofIdx := strings.LastIndex(string(final), ",p=")
	if withoutProofIdx < 0 {
		return c.sendAuthError("malformed client-final-message")
	}
	authMessage += "," + string(final)[:withoutProofIdx]

	clientSignature := hmacSHA256(storedKey[:], []byte(authMessage))
	recoveredKey := xorBytes(clientProof, clientSignature)
	recoveredStored := sha256.Sum256(recoveredKey)
	if subtle.ConstantTimeCompare(recoveredStored[:], storedKey[:]) != 1 {
		return c.sendAuthError("password does not match")
	}

	serverSignature := hmacSHA256(serverKey, []byte(authMessage))
	serverFinal := "v=" + base64.StdEncoding.EncodeToString(serverSignature)
	if err := c.send(&pgproto3.AuthenticationSASLFinal{Data: []byte(serverFinal)}); err != nil {
		return err
	}
	return c.send(&pgproto3.AuthenticationOk{})
}

func (c *Conn) sendAuthError(msg string) error {
	c.send(&pgproto3.ErrorResponse{Severity: "FATAL", Code: "28P01", Message: msg})
	return fmt.Errorf("scram: %s", msg)
}

// receiveRawPassword reads the next 'p'-tagged message (PasswordMessage is
// how pgproto3's Backend decodes any client response during the auth
// phase, SASL included — the frame carries raw bytes the caller
// interprets according to which SASL step is in flight).
func (c *Conn) receiveRawPassword() ([]byte, error) {
	msg, err := c.backend.Receive()
	if err != nil {
		return nil, err
	}
	pm, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		return nil, fmt.Errorf("expected password/SASL response, got %T", msg)
	}
	return []byte(pm.Password), nil
}

func parseSASLInitialResponse(raw []byte) (mechanism string, clientFirst []byte, err error) {
	nul := indexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("malformed SASLInitialResponse")
	}
	mechanism = string(raw[:nul])
	rest := raw[nul+1:]
	if len(rest) < 4 {
		return "", nil, fmt.Errorf("malformed SASLInitialResponse length")
	}
	n := int32(rest[0])<<24 | int32(rest[1])<<16 | int32(rest[2])<<8 | int32(rest[3])
	if n < 0 || int(n) > len(rest)-4 {
		return "", nil, fmt.Errorf("malformed SASLInitialResponse data length")
	}
	return mechanism, rest[4 : 4+n], nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseClientFirstMessage extracts the client nonce from "n,,n=user,r=nonce".
func parseClientFirstMessage(msg []byte) (nonce string, err error) {
	parts := strings.Split(string(msg), ",")
	if len(parts) < 4 {
		return "", fmt.Errorf("malformed client-first-message")
	}
	for _, p := range parts[2:] {
		if strings.HasPrefix(p, "r=") {
			return strings.TrimPrefix(p, "r="), nil
		}
	}
	return "", fmt.Errorf("client-first-message missing nonce")
}

// clientFirstBare strips the "n,," GS2 header, leaving "n=user,r=nonce",
// the portion SCRAM's AuthMessage is built from.
func clientFirstBare(msg []byte) string {
	s := string(msg)
	if idx := strings.Index(s, "n="); idx >= 0 {
		return s[idx:]
	}
	return s
}

func parseClientFinalMessage(msg string) (channelBinding, nonce, proof string, err error) {
	parts := strings.Split(msg, ",")
	for _, p := range parts {
		switch {
		case strings.HasPrefix(p, "c="):
			channelBinding = strings.TrimPrefix(p, "c=")
		case strings.HasPrefix(p, "r="):
			nonce = strings.TrimPrefix(p, "r=")
		case strings.HasPrefix(p, "p="):
			proof = strings.TrimPrefix(p, "p=")
		}
	}
	if channelBinding == "" || nonce == "" || proof == "" {
		return "", "", "", fmt.Errorf("malformed client-final-message")
	}
	return channelBinding, nonce, proof, nil
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i%len(b)]
	}
	return out
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

// Package kasa drives TP-Link Kasa smart plugs over their local protocol.
package kasa

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const initialKey = 171

// maxFrame bounds a TCP reply. Sysinfo replies are a few hundred bytes.
const maxFrame = 64 * 1024

var (
	getSysinfo = []byte(`{"system":{"get_sysinfo":{}}}`)

	errFrameTooLarge = errors.New("kasa frame too large")
)

// encrypt applies the autokey XOR cipher: each output byte keys the next.
func encrypt(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := byte(initialKey)
	for i, b := range plain {
		key ^= b
		out[i] = key
	}
	return out
}

func decrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := byte(initialKey)
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}

// writeFrame writes a length-prefixed encrypted message (TCP framing).
func writeFrame(w io.Writer, plain []byte) error {
	buf := make([]byte, 4+len(plain))
	binary.BigEndian.PutUint32(buf, uint32(len(plain)))
	copy(buf[4:], encrypt(plain))
	_, err := w.Write(buf)
	return err
}

// readFrame reads one length-prefixed encrypted message.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return decrypt(body), nil
}

type sysInfo struct {
	Alias      string `json:"alias"`
	Model      string `json:"model"`
	DeviceID   string `json:"deviceId"`
	RelayState int    `json:"relay_state"`
	ErrCode    int    `json:"err_code"`
}

type errReply struct {
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

type reply struct {
	System struct {
		GetSysinfo    *sysInfo  `json:"get_sysinfo"`
		SetRelayState *errReply `json:"set_relay_state"`
	} `json:"system"`
}

func relayCommand(on bool) []byte {
	state := 0
	if on {
		state = 1
	}
	return []byte(fmt.Sprintf(`{"system":{"set_relay_state":{"state":%d}}}`, state))
}

func parseReply(b []byte) (*reply, error) {
	var r reply
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode kasa reply: %w", err)
	}
	return &r, nil
}

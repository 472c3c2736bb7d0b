package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"

	"github.com/smallyu/go-desig-tss/internal/crypto/curves"
	"github.com/smallyu/go-desig-tss/internal/keyshare"
	"github.com/smallyu/go-desig-tss/internal/protocol/sign"
	"github.com/smallyu/go-desig-tss/internal/protocol/txcodec"
	"github.com/smallyu/go-desig-tss/pkg/tss"
)

// shareInfo is the public part of a key share as handed to JS. Integers are
// strings so that 64-bit indices survive JS numbers.
type shareInfo struct {
	Curve     string `json:"curve"`
	MasterKey string `json:"masterKey"`
	GroupID   string `json:"groupId"`
	MemberID  string `json:"memberId"`
	Index     string `json:"index"`
	T         string `json:"t"`
	N         string `json:"n"`
}

type transactionInfo struct {
	Type       string   `json:"type"`
	ID         string   `json:"id"`
	RefGroupID string   `json:"refGroupId"`
	T          string   `json:"t"`
	N          string   `json:"n"`
	Members    []string `json:"members"`
}

func describeShare(secret string) (string, error) {
	share, err := keyshare.FromSecretString(secret)
	if err != nil {
		return "", err
	}
	return marshal(shareInfo{
		Curve:     string(share.Curve),
		MasterKey: base58.Encode(share.MasterPublicKey),
		GroupID:   share.GroupID.String(),
		MemberID:  share.MemberID(),
		Index:     fmt.Sprint(share.Index),
		T:         fmt.Sprint(share.T),
		N:         fmt.Sprint(share.N),
	})
}

// proactivate applies a hex-encoded compressed zero-share to a secret string
// and returns the updated secret string.
func proactivate(secret, compressedHex string) (string, error) {
	share, err := keyshare.FromSecretString(secret)
	if err != nil {
		return "", err
	}
	compressed, err := hex.DecodeString(compressedHex)
	if err != nil {
		return "", errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	if err := share.Proactivate(compressed); err != nil {
		return "", err
	}
	return share.SecretString(), nil
}

func describeTransaction(curveName, bufHex string) (string, error) {
	curve, err := curves.ForName(tss.CurveName(curveName))
	if err != nil {
		return "", err
	}
	buf, err := hex.DecodeString(bufHex)
	if err != nil {
		return "", errors.Wrap(tss.ErrInvalidFormat, err.Error())
	}
	tx, err := txcodec.LayoutV1(curve).Decode(buf)
	if err != nil {
		return "", err
	}
	info := transactionInfo{
		Type:       tx.Type.String(),
		ID:         txcodec.TransactionID(buf).String(),
		RefGroupID: tx.RefGroupID.String(),
		T:          fmt.Sprint(tx.T),
		N:          fmt.Sprint(tx.N),
	}
	for _, index := range tx.Indices() {
		info.Members = append(info.Members, fmt.Sprint(index))
	}
	return marshal(info)
}

func verify(curveName, masterHex, msgHex, sigHex string) error {
	curve, err := curves.ForName(tss.CurveName(curveName))
	if err != nil {
		return err
	}
	var raw [3][]byte
	for i, s := range []string{masterHex, msgHex, sigHex} {
		if raw[i], err = hex.DecodeString(s); err != nil {
			return errors.Wrap(tss.ErrInvalidFormat, err.Error())
		}
	}
	return sign.Verify(curve, raw[0], raw[1], raw[2])
}

func marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

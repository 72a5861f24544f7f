package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/iov-one/microchan/crypto"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/iov-one/microchan/x/sigs"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ed25519"
)

// keyInfo is printed by keygen.
type keyInfo struct {
	Address string           `json:"address"`
	Pubkey  crypto.PublicKey `json:"pubkey"`
	Privkey string           `json:"privkey"`
	Path    string           `json:"path,omitempty"`
}

var cmdKeygen = &cli.Command{
	Name:  "keygen",
	Usage: "create an ed25519 key, derived from a seed when one is given",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "seed", Usage: "hex encoded master seed"},
		&cli.StringFlag{Name: "path", Value: crypto.DefaultDerivationPath, Usage: "derivation path"},
	},
	Action: func(c *cli.Context) error {
		var (
			key  crypto.PrivateKey
			path string
		)
		if s := c.String("seed"); s != "" {
			seed, err := hex.DecodeString(s)
			if err != nil {
				return errors.Wrap(errors.ErrInput, "seed is not hex encoded")
			}
			path = c.String("path")
			if key, err = crypto.DeriveKey(seed, path); err != nil {
				return err
			}
		} else {
			key = crypto.GenPrivKeyEd25519()
		}
		return printJSON(c, keyInfo{
			Address: key.Address().String(),
			Pubkey:  key.PublicKey(),
			Privkey: hex.EncodeToString(key),
			Path:    path,
		})
	},
}

var cmdKeyaddr = &cli.Command{
	Name:      "keyaddr",
	Usage:     "print the address of a hex encoded public key",
	ArgsUsage: "<pubkey>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.Wrap(errors.ErrInput, "expected one public key")
		}
		pub, err := crypto.ParsePublicKey(c.Args().First())
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, pub.Address().String())
		return nil
	},
}

var cmdSignPayment = &cli.Command{
	Name:  "sign-payment",
	Usage: "sign a channel payment offline",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "key", Required: true, Usage: "hex encoded private key of the payer"},
		&cli.StringFlag{Name: "chain", Required: true, Usage: "chain id"},
		&cli.StringFlag{Name: "channel", Required: true, Usage: "channel id"},
		&cli.Uint64Flag{Name: "amount", Required: true},
		&cli.Uint64Flag{Name: "sequence", Required: true, Usage: "channel sequence after the payment"},
		&cli.StringFlag{Name: "service", Value: paychan.ServiceDataTransfer.String()},
		&cli.Uint64Flag{Name: "data-amount"},
		&cli.UintFlag{Name: "quality"},
		&cli.Uint64Flag{Name: "duration"},
		&cli.StringFlag{Name: "metadata", Usage: "hex encoded"},
	},
	Action: func(c *cli.Context) error {
		key, err := parsePrivateKey(c.String("key"))
		if err != nil {
			return err
		}
		var st paychan.ServiceType
		if err := st.UnmarshalJSON([]byte(strconv.Quote(c.String("service")))); err != nil {
			return err
		}
		meta, err := hex.DecodeString(c.String("metadata"))
		if err != nil {
			return errors.Wrap(errors.ErrInput, "metadata is not hex encoded")
		}
		svc := paychan.ServiceData{
			Type:         st,
			DataAmount:   c.Uint64("data-amount"),
			QualityScore: uint32(c.Uint("quality")),
			Duration:     c.Uint64("duration"),
			Metadata:     meta,
		}
		if err := svc.Validate(); err != nil {
			return err
		}
		digest := paychan.PaymentDigest(c.String("chain"), c.String("channel"), c.Uint64("amount"), svc, c.Uint64("sequence"))
		sig, err := sigs.Sign(key, digest)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, hex.EncodeToString(sig))
		return nil
	},
}

func parsePrivateKey(s string) (crypto.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, "private key is not hex encoded")
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(errors.ErrInput, "private key length %d", len(raw))
	}
	return crypto.PrivateKey(raw), nil
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

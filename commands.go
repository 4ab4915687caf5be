package main

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gregLibert/musclecard/pkg/config"
	"github.com/gregLibert/musclecard/pkg/iso7816"
	"github.com/gregLibert/musclecard/pkg/muscle"
	"github.com/urfave/cli/v2"
)

// withSession wraps an action that needs a selected applet.
func withSession(fn func(*cli.Context, *session) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		s, err := openSession(cCtx)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cCtx, s)
	}
}

// args returns exactly n positional arguments.
func args(cCtx *cli.Context, n int) ([]string, error) {
	if cCtx.NArg() != n {
		return nil, fmt.Errorf("%s: expected %d arguments, got %d (usage: %s %s)",
			cCtx.Command.Name, n, cCtx.NArg(), cCtx.Command.Name, cCtx.Command.ArgsUsage)
	}
	return cCtx.Args().Slice(), nil
}

// parseObjectID accepts 0x-prefixed hex, a decimal, or a 4-character ASCII
// name such as "C0\x00\x00". A 4-digit string is read as decimal.
func parseObjectID(s string) (muscle.ObjectID, error) {
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("object id %q: %w", s, err)
		}
		return muscle.ObjectID(v), nil
	}
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return muscle.ObjectID(v), nil
	}
	if len(s) == 4 {
		return muscle.ObjectID(uint32(s[0])<<24 | uint32(s[1])<<16 | uint32(s[2])<<8 | uint32(s[3])), nil
	}
	return 0, fmt.Errorf("object id %q: want 0x-hex, decimal or 4 ASCII characters", s)
}

func parseUint(s string, bits int, what string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", what, s, err)
	}
	return v, nil
}

func parseSlot(s string) (byte, error) {
	v, err := parseUint(s, 8, "slot")
	return byte(v), err
}

// parseACL reads "read,write,delete" as three hex words.
func parseACL(s string) (muscle.ACL, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return muscle.ACL{}, fmt.Errorf("acl %q: want read,write,delete", s)
	}
	var v [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(p), "0x"), 16, 16)
		if err != nil {
			return muscle.ACL{}, fmt.Errorf("acl %q: %w", s, err)
		}
		v[i] = uint16(n)
	}
	return muscle.ACL{Read: v[0], Write: v[1], Delete: v[2]}, nil
}

// inputBytes returns --in file content, or the hex argument otherwise.
func inputBytes(cCtx *cli.Context, hexArg string) ([]byte, error) {
	if path := cCtx.String("in"); path != "" {
		return os.ReadFile(path)
	}
	return hex.DecodeString(strings.ReplaceAll(hexArg, " ", ""))
}

// writeOutput writes data to --out when set and prints it as hex otherwise.
func writeOutput(cCtx *cli.Context, data []byte) error {
	if path := cCtx.String("out"); path != "" {
		return os.WriteFile(path, data, 0o600)
	}
	fmt.Print(hex.Dump(data))
	return nil
}

var flagIn = &cli.StringFlag{Name: "in", Usage: "read input from this file instead of the hex argument"}
var flagOut = &cli.StringFlag{Name: "out", Usage: "write output to this file instead of printing hex"}

var cmdSelect = &cli.Command{
	Name:  "select",
	Usage: "select the applet and show its FCI",
	Action: withSession(func(_ *cli.Context, s *session) error {
		fmt.Println(s.info.Describe())
		return nil
	}),
}

var cmdAPDU = &cli.Command{
	Name:      "apdu",
	Usage:     "send a raw command APDU after selection and print every exchange",
	ArgsUsage: "<hex>",
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 1)
		if err != nil {
			return err
		}
		raw, err := hex.DecodeString(strings.ReplaceAll(a[0], " ", ""))
		if err != nil {
			return fmt.Errorf("apdu: %w", err)
		}
		cmd, err := iso7816.ParseCommandAPDU(raw)
		if err != nil {
			return fmt.Errorf("apdu: %w", err)
		}

		trace, err := s.client.Send(cmd)
		if err != nil {
			return err
		}
		fmt.Println(trace.Describe())
		if last := trace.Last(); last != nil && last.Response != nil {
			fmt.Println(">>", last.Response.Status.Verbose())
		}
		return nil
	}),
}

var cmdList = &cli.Command{
	Name:  "list",
	Usage: "list every object",
	Action: withSession(func(_ *cli.Context, s *session) error {
		objects, err := s.card.Objects()
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Println(o)
		}
		fmt.Printf("%d objects\n", len(objects))
		return nil
	}),
}

var cmdRead = &cli.Command{
	Name:      "read",
	Usage:     "read bytes from an object",
	ArgsUsage: "<id> <offset> <length>",
	Flags:     []cli.Flag{flagOut},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 3)
		if err != nil {
			return err
		}
		id, err := parseObjectID(a[0])
		if err != nil {
			return err
		}
		off, err := parseUint(a[1], 32, "offset")
		if err != nil {
			return err
		}
		n, err := parseUint(a[2], 32, "length")
		if err != nil {
			return err
		}

		data, err := s.card.ReadObject(id, uint32(off), int(n))
		if err != nil {
			return err
		}
		return writeOutput(cCtx, data)
	}),
}

var cmdWrite = &cli.Command{
	Name:      "write",
	Usage:     "write bytes into an object",
	ArgsUsage: "<id> <offset> [hex]",
	Flags:     []cli.Flag{flagIn},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		if cCtx.NArg() < 2 {
			return fmt.Errorf("write: usage: write %s", cCtx.Command.ArgsUsage)
		}
		id, err := parseObjectID(cCtx.Args().Get(0))
		if err != nil {
			return err
		}
		off, err := parseUint(cCtx.Args().Get(1), 32, "offset")
		if err != nil {
			return err
		}
		data, err := inputBytes(cCtx, cCtx.Args().Get(2))
		if err != nil {
			return err
		}

		n, err := s.card.WriteObject(id, uint32(off), data)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes\n", n)
		return nil
	}),
}

var cmdCreate = &cli.Command{
	Name:      "create",
	Usage:     "create an object",
	ArgsUsage: "<id> <size>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "acl", Value: "0000,0002,0002", Usage: "read,write,delete ACL words in hex"},
		&cli.BoolFlag{Name: "replace", Usage: "delete and recreate the object if it exists"},
	},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 2)
		if err != nil {
			return err
		}
		id, err := parseObjectID(a[0])
		if err != nil {
			return err
		}
		size, err := parseUint(a[1], 32, "size")
		if err != nil {
			return err
		}
		acl, err := parseACL(cCtx.String("acl"))
		if err != nil {
			return err
		}

		create := s.card.CreateObject
		if cCtx.Bool("replace") {
			create = s.card.CreateObjectReplacing
		}
		n, err := create(id, uint32(size), acl)
		if err != nil {
			return err
		}
		fmt.Printf("created %08X (%d bytes)\n", uint32(id), n)
		return nil
	}),
}

var cmdDelete = &cli.Command{
	Name:      "delete",
	Usage:     "delete an object",
	ArgsUsage: "<id>",
	Flags:     []cli.Flag{&cli.BoolFlag{Name: "zero", Usage: "ask the card to clear the object first"}},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 1)
		if err != nil {
			return err
		}
		id, err := parseObjectID(a[0])
		if err != nil {
			return err
		}
		return s.card.DeleteObject(id, cCtx.Bool("zero"))
	}),
}

// pinResult reports a PIN command outcome. The retry counter, when the card
// gave one, is already part of the error text.
func pinResult(err error) error {
	if err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

var cmdVerify = &cli.Command{
	Name:      "verify-pin",
	Usage:     "verify a PIN",
	ArgsUsage: "<ref> <pin>",
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 2)
		if err != nil {
			return err
		}
		ref, err := parseUint(a[0], 8, "pin reference")
		if err != nil {
			return err
		}
		return pinResult(s.card.VerifyPIN(byte(ref), []byte(a[1])))
	}),
}

var cmdUnblock = &cli.Command{
	Name:      "unblock-pin",
	Usage:     "reset a PIN retry counter with its unblock code",
	ArgsUsage: "<ref> <code>",
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 2)
		if err != nil {
			return err
		}
		ref, err := parseUint(a[0], 8, "pin reference")
		if err != nil {
			return err
		}
		return pinResult(s.card.UnblockPIN(byte(ref), []byte(a[1])))
	}),
}

var cmdChange = &cli.Command{
	Name:      "change-pin",
	Usage:     "change a PIN",
	ArgsUsage: "<ref> <old> <new>",
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 3)
		if err != nil {
			return err
		}
		ref, err := parseUint(a[0], 8, "pin reference")
		if err != nil {
			return err
		}
		return pinResult(s.card.ChangePIN(byte(ref), []byte(a[1]), []byte(a[2])))
	}),
}

var cmdChallenge = &cli.Command{
	Name:      "challenge",
	Usage:     "get random bytes from the card",
	ArgsUsage: "<length>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "seed", Usage: "hex seed mixed into the generator"},
		flagOut,
	},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 1)
		if err != nil {
			return err
		}
		n, err := parseUint(a[0], 16, "length")
		if err != nil {
			return err
		}
		seed, err := hex.DecodeString(cCtx.String("seed"))
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}

		out, err := s.card.GetChallenge(int(n), seed)
		if err != nil {
			return err
		}
		return writeOutput(cCtx, out)
	}),
}

var cmdGenerate = &cli.Command{
	Name:      "generate",
	Usage:     "generate an RSA key pair on the card",
	ArgsUsage: "<private-slot> <public-slot> <bits>",
	Flags:     []cli.Flag{&cli.BoolFlag{Name: "no-crt", Usage: "store the private key as modulus and exponent"}},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 3)
		if err != nil {
			return err
		}
		priv, err := parseSlot(a[0])
		if err != nil {
			return err
		}
		pub, err := parseSlot(a[1])
		if err != nil {
			return err
		}
		bits, err := parseUint(a[2], 16, "key size")
		if err != nil {
			return err
		}

		alg := muscle.AlgRSACRT
		if cCtx.Bool("no-crt") {
			alg = muscle.AlgRSA
		}
		if err := s.card.GenerateKeypair(priv, pub, alg, uint16(bits)); err != nil {
			return err
		}
		fmt.Printf("generated %d-bit key pair in slots %d/%d\n", bits, priv, pub)
		return nil
	}),
}

var cmdExtract = &cli.Command{
	Name:      "extract",
	Usage:     "read a public key and print it as PEM",
	ArgsUsage: "<slot>",
	Flags:     []cli.Flag{flagOut},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 1)
		if err != nil {
			return err
		}
		slot, err := parseSlot(a[0])
		if err != nil {
			return err
		}

		key, err := s.card.ExtractPublicKey(slot)
		if err != nil {
			return err
		}
		pub, err := key.RSA()
		if err != nil {
			return err
		}
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return fmt.Errorf("failed to marshal public key: %w", err)
		}

		publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
		if path := cCtx.String(flagOut.Name); path != "" {
			return os.WriteFile(path, publicKeyPEM, 0o644)
		}
		fmt.Print(string(publicKeyPEM))
		return nil
	}),
}

var cmdImport = &cli.Command{
	Name:      "import",
	Usage:     "import an RSA key from a PEM file",
	ArgsUsage: "<slot> <pem-file>",
	Flags:     []cli.Flag{&cli.BoolFlag{Name: "no-crt", Usage: "import a private key as modulus and exponent"}},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		a, err := args(cCtx, 2)
		if err != nil {
			return err
		}
		slot, err := parseSlot(a[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(a[1])
		if err != nil {
			return err
		}

		k, err := keyMaterialFromPEM(data, !cCtx.Bool("no-crt"))
		if err != nil {
			return err
		}
		if err := s.card.ImportKey(slot, k); err != nil {
			return err
		}
		fmt.Printf("imported %s key (%d bits) into slot %d\n", k.Type, k.Bits, slot)
		return nil
	}),
}

// keyMaterialFromPEM accepts PKCS#1 or PKCS#8 private keys and PKIX or PKCS#1
// public keys.
func keyMaterialFromPEM(data []byte, crt bool) (muscle.KeyMaterial, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return muscle.KeyMaterial{}, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return muscle.KeyMaterial{}, err
		}
		return muscle.KeyMaterialFromRSA(priv, crt)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return muscle.KeyMaterial{}, err
		}
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return muscle.KeyMaterial{}, fmt.Errorf("unsupported private key type %T", key)
		}
		return muscle.KeyMaterialFromRSA(priv, crt)
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return muscle.KeyMaterial{}, err
		}
		return muscle.KeyMaterialFromRSAPublic(pub), nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return muscle.KeyMaterial{}, err
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return muscle.KeyMaterial{}, fmt.Errorf("unsupported public key type %T", key)
		}
		return muscle.KeyMaterialFromRSAPublic(pub), nil
	}
	return muscle.KeyMaterial{}, fmt.Errorf("unsupported PEM block %q", block.Type)
}

var cipherModes = map[string]muscle.CipherMode{
	"nopad": muscle.ModeRSANoPad,
	"pkcs1": muscle.ModeRSAPKCS1,
}

var directions = map[string]muscle.Direction{
	"sign":    muscle.DirSign,
	"verify":  muscle.DirVerify,
	"encrypt": muscle.DirEncrypt,
	"decrypt": muscle.DirDecrypt,
}

var cmdCrypt = &cli.Command{
	Name:      "crypt",
	Usage:     "run data through a key on the card",
	ArgsUsage: "<slot> [hex]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "mode", Value: "nopad", Usage: "nopad or pkcs1"},
		&cli.StringFlag{Name: "dir", Value: "encrypt", Usage: "sign, verify, encrypt or decrypt"},
		flagIn,
		flagOut,
	},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		if cCtx.NArg() < 1 {
			return fmt.Errorf("crypt: usage: crypt %s", cCtx.Command.ArgsUsage)
		}
		slot, err := parseSlot(cCtx.Args().Get(0))
		if err != nil {
			return err
		}
		mode, ok := cipherModes[cCtx.String("mode")]
		if !ok {
			return fmt.Errorf("unknown mode %q", cCtx.String("mode"))
		}
		dir, ok := directions[cCtx.String("dir")]
		if !ok {
			return fmt.Errorf("unknown direction %q", cCtx.String("dir"))
		}
		input, err := inputBytes(cCtx, cCtx.Args().Get(1))
		if err != nil {
			return err
		}

		out, err := s.card.ComputeCrypt(slot, mode, dir, input)
		if err != nil {
			return err
		}
		return writeOutput(cCtx, out)
	}),
}

var cmdConfig = &cli.Command{
	Name:  "config",
	Usage: "print the resolved settings",
	Action: func(cCtx *cli.Context) error {
		cfg, err := loadConfig(cCtx)
		if err != nil {
			return err
		}
		printConfig(cfg)
		return nil
	},
}

func printConfig(cfg config.Config) {
	reader := cfg.Reader
	if reader == "" {
		reader = "(first available)"
	}
	aid := fmt.Sprintf("%X", cfg.AID)
	if cfg.AID == nil {
		aid = fmt.Sprintf("%X (default)", muscle.DefaultAID)
	}
	fmt.Printf("reader: %s\naid:    %s\nclass:  %02X\nlog:    debug=%t json=%t uid=%t\n",
		reader, aid, cfg.Class, cfg.Log.Debug, cfg.Log.JSON, cfg.Log.UID)
}

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gregLibert/musclecard/pkg/muscle"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "musclectl",
		Usage: "drive a MUSCLE applet over PC/SC",
		Flags: globalFlags,
		Commands: []*cli.Command{
			cmdSelect,
			cmdList,
			cmdRead,
			cmdWrite,
			cmdCreate,
			cmdDelete,
			cmdVerify,
			cmdUnblock,
			cmdChange,
			cmdChallenge,
			cmdGenerate,
			cmdExtract,
			cmdImport,
			cmdCrypt,
			cmdAPDU,
			cmdDemo,
			cmdConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var cmdDemo = &cli.Command{
	Name:  "demo",
	Usage: "walk through the applet features (pair with --emulate and --pin)",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "slot", Value: 4, Usage: "private key slot; the public key goes in slot+1"},
		&cli.UintFlag{Name: "bits", Value: 1024, Usage: "RSA key size"},
	},
	Action: withSession(func(cCtx *cli.Context, s *session) error {
		slot := cCtx.Uint("slot")
		if slot > 14 {
			return fmt.Errorf("slot %d: need room for the public key in slot+1", slot)
		}
		return runDemo(s, byte(slot), uint16(cCtx.Uint("bits")))
	}),
}

// demoObject is scratch storage for the walkthrough.
const demoObject muscle.ObjectID = 0x64656D6F // "demo"

var aclOpen = muscle.ACL{Read: muscle.ACLNone, Write: muscle.ACLNone, Delete: muscle.ACLNone}

func banner(title string) {
	fmt.Println("\n=============================================")
	fmt.Println(" " + title)
	fmt.Println("=============================================")
}

// prefix returns at most the first n bytes of b.
func prefix(b []byte, n int) []byte {
	return b[:min(len(b), n)]
}

// runDemo is the scripted tour: objects, randomness, keys and cipher.
func runDemo(s *session, slot byte, bits uint16) error {
	card := s.card

	banner("Step 1: SELECT MUSCLE APPLET")
	fmt.Println(s.info.Describe())

	banner("Step 2: OBJECT STORE")
	payload := []byte("MUSCLE objects are chunked: 255 bytes per read, 246 per update.")
	if _, err := card.CreateObjectReplacing(demoObject, uint32(len(payload)), aclOpen); err != nil {
		return fmt.Errorf("step 2 create: %w", err)
	}
	if _, err := card.WriteObject(demoObject, 0, payload); err != nil {
		return fmt.Errorf("step 2 write: %w", err)
	}
	back, err := card.ReadObject(demoObject, 0, len(payload))
	if err != nil {
		return fmt.Errorf("step 2 read: %w", err)
	}
	fmt.Printf(">> Read back: %q\n", back)

	objects, err := card.Objects()
	if err != nil {
		return fmt.Errorf("step 2 list: %w", err)
	}
	for _, o := range objects {
		fmt.Println("   [+]", o)
	}
	if err := card.DeleteObject(demoObject, true); err != nil {
		return fmt.Errorf("step 2 delete: %w", err)
	}

	banner("Step 3: CHALLENGE")
	for _, n := range []int{16, 300} {
		random, err := card.GetChallenge(n, nil)
		if err != nil {
			return fmt.Errorf("step 3 challenge of %d bytes: %w", n, err)
		}
		fmt.Printf(">> %d random bytes, starting %X\n", len(random), prefix(random, 8))
	}

	banner(fmt.Sprintf("Step 4: RSA-%d KEY PAIR IN SLOTS %d/%d", bits, slot, slot+1))
	if err := card.GenerateKeypair(slot, slot+1, muscle.AlgRSACRT, bits); err != nil {
		return fmt.Errorf("step 4 generate: %w", err)
	}
	pub, err := card.ExtractPublicKey(slot + 1)
	if err != nil {
		return fmt.Errorf("step 4 extract: %w", err)
	}
	fmt.Printf(">> Modulus: %X...\n>> Exponent: %X\n", prefix(pub.Modulus, 16), pub.Exponent)

	banner("Step 5: ENCRYPT WITH THE PUBLIC KEY, DECRYPT ON CARD")
	msg := []byte("hello from musclectl")
	block := make([]byte, len(pub.Modulus))
	n := 0
	if len(block) > 1 {
		n = copy(block[1:], msg)
	}

	ct, err := card.ComputeCrypt(slot+1, muscle.ModeRSANoPad, muscle.DirEncrypt, block)
	if err != nil {
		return fmt.Errorf("step 5 encrypt: %w", err)
	}
	pt, err := card.ComputeCrypt(slot, muscle.ModeRSANoPad, muscle.DirDecrypt, ct)
	if err != nil {
		return fmt.Errorf("step 5 decrypt (is the PIN verified?): %w", err)
	}
	fmt.Printf(">> Round trip: %q\n", prefix(pt[min(len(pt), 1):], n))

	fmt.Println("\n>> Demo Finished Successfully")
	return nil
}

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrEthical07/goSession/keys"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		alg    string
		outDir string
		asEnv  bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an access token signing key pair",
		Long: `keygen prints a fresh PKCS#8 private key and PKIX public key in PEM form.
With --out-dir the pair is written to private.pem and public.pem instead.
With --env the keys are printed as JWT_PRIVATE_KEY and JWT_PUBLIC_KEY lines
with escaped newlines, ready for an env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, pub, err := keys.Generate(keys.Algorithm(alg))
			if err != nil {
				return err
			}
			if outDir != "" {
				return writeKeyFiles(cmd.OutOrStdout(), outDir, priv, pub)
			}
			out := cmd.OutOrStdout()
			if asEnv {
				fmt.Fprintf(out, "JWT_ALGORITHM=%s\n", alg)
				fmt.Fprintf(out, "JWT_PRIVATE_KEY=\"%s\"\n", escapePEM(priv))
				fmt.Fprintf(out, "JWT_PUBLIC_KEY=\"%s\"\n", escapePEM(pub))
				return nil
			}
			_, err = fmt.Fprintf(out, "%s%s", priv, pub)
			return err
		},
	}
	cmd.Flags().StringVar(&alg, "alg", string(keys.AlgorithmRS256), "signing algorithm: RS256 or EdDSA")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write private.pem and public.pem into this directory")
	cmd.Flags().BoolVar(&asEnv, "env", false, "print as environment variable assignments")
	return cmd
}

func writeKeyFiles(out io.Writer, dir string, priv, pub []byte) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	privPath := filepath.Join(dir, "private.pem")
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return err
	}
	pubPath := filepath.Join(dir, "public.pem")
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\nwrote %s\n", privPath, pubPath)
	return nil
}

func escapePEM(b []byte) string {
	return strings.ReplaceAll(strings.TrimRight(string(b), "\n"), "\n", `\n`)
}

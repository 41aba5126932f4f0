package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vybiumvalida "github.com/vybium/vybium-valida-verifier/pkg/vybium-valida"
)

// Exit statuses
const (
	exitAccepted = 0
	exitRejected = 1
	exitError    = 2
)

// zstdMagic starts every zstd frame
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	v := viper.New()
	v.SetEnvPrefix("VYBIUM_VALIDA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	status := exitAccepted
	cmd := &cobra.Command{
		Use:   "vybium-valida-verify",
		Short: "Verify a Valida proof against its executable",
		Long: "Re-executes the executable to derive its public values and checks the " +
			"proof against them. Exits 0 when the proof is accepted, 1 when it is " +
			"rejected and 2 on any other error.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if path := v.GetString("config"); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config %s: %w", path, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			accepted, err := verify(v, cmd.ErrOrStderr(), cmd.OutOrStdout())
			if !accepted {
				status = exitRejected
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "Path to a config file (yaml, toml or json)")
	flags.String("proof", "", "Path to the proof file; .zst files are decompressed")
	flags.String("executable", "", "Path to the ELF executable")
	flags.Uint32("stack-height", vybiumvalida.DefaultStackHeight, "Initial frame pointer")
	flags.String("advice", "", "Advice bytes as a literal string")
	flags.String("advice-file", "", "Path to a file holding the advice bytes")
	flags.String("seed", vybiumvalida.DefaultSeed, "Configuration seed")
	flags.Uint64("max-cycles", 0, "Bound re-execution to this many cycles (0 keeps the default)")
	flags.BoolP("verbose", "v", false, "Log each verification stage")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		if status == exitAccepted {
			status = exitError
		}
	}
	return status
}

// verify runs one verification from the bound settings. accepted is false
// only when the proof itself was rejected.
func verify(v *viper.Viper, logOut, out io.Writer) (accepted bool, err error) {
	level := zerolog.InfoLevel
	if v.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	proofPath := v.GetString("proof")
	exePath := v.GetString("executable")
	if proofPath == "" || exePath == "" {
		return true, errors.New("both --proof and --executable are required")
	}

	proofBytes, err := readProof(proofPath)
	if err != nil {
		return true, err
	}
	executable, err := os.ReadFile(exePath)
	if err != nil {
		return true, fmt.Errorf("failed to read executable: %w", err)
	}
	advice, err := readAdvice(v)
	if err != nil {
		return true, err
	}

	opts := []vybiumvalida.Option{
		vybiumvalida.WithLogger(logger),
		vybiumvalida.WithSeed(v.GetString("seed")),
	}
	if limit := v.GetUint64("max-cycles"); limit > 0 {
		opts = append(opts, vybiumvalida.WithMaxCycles(limit))
	}
	verifier, err := vybiumvalida.NewVerifier(opts...)
	if err != nil {
		return true, err
	}

	stackHeight := v.GetUint32("stack-height")
	result, err := verifier.VerifyDetailed(proofBytes, executable, &stackHeight, advice)
	if errors.Is(err, vybiumvalida.ErrVerificationRejected) {
		logger.Error().Err(err).Msg("proof rejected")
		fmt.Fprintln(out, "rejected")
		return false, nil
	}
	if err != nil {
		return true, err
	}

	logger.Info().
		Uint64("cycles", result.Cycles).
		Int("degree_bits", result.DegreeBits).
		Dur("duration", result.Duration).
		Msg("proof accepted")
	fmt.Fprintln(out, "accepted")
	for _, word := range result.Output {
		fmt.Fprintf(out, "output: %d\n", word)
	}
	return true, nil
}

// readProof reads a proof file, decompressing zstd frames
func readProof(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proof: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") && !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	decoded, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress proof: %w", err)
	}
	return decoded, nil
}

// readAdvice returns nil when no advice was given
func readAdvice(v *viper.Viper) (*string, error) {
	if path := v.GetString("advice-file"); path != "" {
		if v.IsSet("advice") && v.GetString("advice") != "" {
			return nil, errors.New("--advice and --advice-file are mutually exclusive")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read advice: %w", err)
		}
		advice := string(data)
		return &advice, nil
	}
	if v.IsSet("advice") {
		advice := v.GetString("advice")
		return &advice, nil
	}
	return nil, nil
}

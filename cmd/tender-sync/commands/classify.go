package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
	"github.com/galois26/tender-sync/internal/normalize"
)

var classifyVocabulary string

type classifyOutput struct {
	Relevant bool          `json:"relevant"`
	Record   *model.Record `json:"record,omitempty"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Read one OCDS release as JSON on stdin and print the relevance decision",
	Long: `Read one OCDS release (the raw notice shape) from stdin. Prints whether it
would be kept and, if so, the canonical record the pipeline would build.
Nothing is fetched, geocoded or stored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ccfg := config.ClassifierConfig{VocabularyPath: classifyVocabulary}
		var ncfg config.NormalizeConfig
		if cfgPath != "" {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ncfg = cfg.Normalize
			if ccfg.VocabularyPath == "" {
				ccfg = cfg.Classifier
			}
		}
		cls, err := loadClassifier(ccfg)
		if err != nil {
			return err
		}
		norm, err := normalize.New(ncfg)
		if err != nil {
			return err
		}

		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		var n model.Notice
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("decode notice: %w", err)
		}

		out := classifyOutput{Relevant: cls.Relevant(&n)}
		if out.Relevant {
			rec := norm.Tender(&n, "stdin")
			out.Record = &rec
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyVocabulary, "vocabulary", "", "vocabulary YAML (default: built-in)")
	rootCmd.AddCommand(classifyCmd)
}

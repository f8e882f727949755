package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/colorfulnotion/dexinline/config"
	"github.com/colorfulnotion/dexinline/corpus"
	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
	"github.com/colorfulnotion/dexinline/inline"
	"github.com/colorfulnotion/dexinline/scan"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

var errGoldenMismatch = errors.New("report differs from golden file")

func (a *app) analyseCmd() *cobra.Command {
	var asJSON, onlyInlinable bool
	cmd := &cobra.Command{
		Use:   "analyse <corpus.json>",
		Short: "Analyse every method of a corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, report, err := a.scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := report.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			for _, rec := range report.Records {
				switch {
				case rec.Inlinable:
					fmt.Fprintf(out, "INLINE  %s  %s\n", rec.Method, rec.Detail)
				case !onlyInlinable:
					fmt.Fprintf(out, "REJECT  %s  %s\n", rec.Method, rec.Reason)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the JSON report")
	cmd.Flags().BoolVar(&onlyInlinable, "inlinable", false, "Only list inlinable methods")
	return cmd
}

func loadMethod(corpusPath, class, name string) (*corpus.Corpus, *corpus.Method, error) {
	c, err := corpus.Load(corpusPath)
	if err != nil {
		return nil, nil, err
	}
	m, err := c.FindMethod(class, name)
	if err != nil {
		return nil, nil, err
	}
	return c, m, nil
}

func (a *app) explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <corpus.json> <class> <method>",
		Short: "Explain the decision for one method",
		Long:  "Explain the decision for one method. The method may carry a prototype, as in '<init>(II)V'.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, m, err := loadMethod(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			explain(cmd.OutOrStdout(), inline.NewAnalyser(c), m)
			return nil
		},
	}
}

func explain(out io.Writer, analyser *inline.Analyser, m *corpus.Method) {
	fmt.Fprintf(out, "%s [%s]\n", m, m.Flags())
	var result inline.InlineMethod
	if err := analyser.ExplainMethod(m, &result); err != nil {
		fmt.Fprintf(out, "not inlinable: %s\n  %s\n", dexerrors.GetErrorCodeWithName(err), dexerrors.GetErrorDesc(err))
	} else {
		fmt.Fprintf(out, "inlinable: %s\n", result)
	}
	if m.IsStatic() || !m.IsConstructor() || m.CodeItem() == nil {
		return
	}
	link, _, _ := analyser.ConstructorChain(m)
	if link != nil && link.Class != "" {
		fmt.Fprint(out, chainTree(link).String())
	}
}

// chainTree renders a constructor forwarding chain, callee below caller.
func chainTree(link *inline.ChainLink) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(chainLabel(link))
	branch := tree
	for l := link; l != nil; l = l.Callee {
		for _, iput := range l.IPuts {
			branch.AddNode(fmt.Sprintf("field@%d = arg%d", iput.FieldIndex, iput.Arg))
		}
		switch {
		case l.Callee != nil:
			branch = branch.AddBranch(chainLabel(l.Callee))
		case l.ObjectInit:
			branch.AddNode(corpus.ObjectDescriptor + ".<init>")
		}
	}
	return tree
}

func chainLabel(l *inline.ChainLink) string {
	s := fmt.Sprintf("%s %s", l.Class, l.Method)
	if l.Forwarded != 0 {
		s += fmt.Sprintf(" forwards %d", l.Forwarded)
	}
	return s
}

func (a *app) statsCmd() *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats <corpus.json>",
		Short: "Print inline kinds, rejection reasons and opcode counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, report, err := a.scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s := report.Summary()
			fmt.Fprintf(out, "methods: %d  inlinable: %d  cached: %d\n", s.Methods, s.Inlinable, s.Cached)
			fmt.Fprintln(out, "inline kinds:")
			for _, k := range scan.SortedKeys(s.ByOpcode) {
				fmt.Fprintf(out, "  %-16s %d\n", k, s.ByOpcode[k])
			}
			fmt.Fprintln(out, "rejections:")
			for _, k := range scan.SortedKeys(s.ByReason) {
				fmt.Fprintf(out, "  %-28s %d\n", k, s.ByReason[k])
			}

			code := scan.CodeStats(c)
			fmt.Fprintf(out, "code: %d instructions in %d code units\n", code.InstructionCount, code.CodeUnits)
			ops := make(map[string]int, len(code.OpcodeDistribution))
			for op, n := range code.OpcodeDistribution {
				ops[op.String()] = n
			}
			for i, k := range scan.SortedKeys(ops) {
				if top > 0 && i == top {
					break
				}
				fmt.Fprintf(out, "  %-16s %d\n", k, ops[k])
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "Number of opcodes to list (0: all)")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var update bool
	cmd := &cobra.Command{
		Use:   "check <corpus.json> <golden.json>",
		Short: "Compare the JSON report with a golden file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, report, err := a.scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			actual, err := report.JSON()
			if err != nil {
				return err
			}
			if update {
				return os.WriteFile(args[1], append(actual, '\n'), 0644)
			}
			expected, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read golden: %w", err)
			}
			return diffReports(cmd.OutOrStdout(), expected, actual)
		},
	}
	cmd.Flags().BoolVar(&update, "update", false, "Rewrite the golden file from the current report")
	return cmd
}

func diffReports(out io.Writer, expected, actual []byte) error {
	delta, err := gojsondiff.New().Compare(expected, actual)
	if err != nil {
		return fmt.Errorf("diff reports: %w", err)
	}
	if !delta.Modified() {
		fmt.Fprintln(out, "report matches golden file")
		return nil
	}
	var left interface{}
	if err := json.Unmarshal(expected, &left); err != nil {
		return err
	}
	asciiFmt := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	text, err := asciiFmt.Format(delta)
	if err != nil {
		return fmt.Errorf("format diff: %w", err)
	}
	fmt.Fprintln(out, text)
	return errGoldenMismatch
}

func (a *app) disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <corpus.json> <class> <method>",
		Short: "Disassemble a method body",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, m, err := loadMethod(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			code := m.CodeItem()
			if code == nil {
				fmt.Fprintf(out, "%s has no code\n", m)
				return nil
			}
			fmt.Fprintf(out, "%s registers=%d ins=%d units=%d\n", m, code.RegistersSize, code.InsSize, code.InsnsSizeInCodeUnits())
			fmt.Fprint(out, dex.DisassembleToString(code))
			return nil
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the inlinescan config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective settings to a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := a.cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

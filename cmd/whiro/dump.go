package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whiro/internal/ir"
	"whiro/internal/typetable"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <module|table>",
	Short: "Dump an IR module container or a Type Table file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().Int("table-size", 0, "descriptor count when dumping a Type Table file")
}

func runDump(cmd *cobra.Command, args []string) error {
	if n, _ := cmd.Flags().GetInt("table-size"); n > 0 {
		return dumpTable(args[0], n)
	}
	return dumpModule(args[0])
}

func dumpModule(path string) error {
	m, err := ir.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("module %s (source %s)\n", m.Name, m.SourceFile)
	fmt.Printf("  %d globals, %d functions\n", len(m.Globals), len(m.Funcs))
	for _, g := range m.Globals {
		di := ""
		if g.DI != nil {
			di = "  // " + g.DI.VarName
		}
		fmt.Printf("  global %s%s\n", g.Name, di)
	}
	for _, f := range m.Funcs {
		instrs := 0
		for bi := range f.Blocks {
			instrs += len(f.Blocks[bi].Instrs)
		}
		fmt.Printf("  func %s: %d blocks, %d instrs\n", f.Name, len(f.Blocks), instrs)
		if err := ir.Validate(f); err != nil {
			fmt.Fprintf(os.Stderr, "  invalid: %v\n", err)
		}
	}
	return nil
}

func dumpTable(path string, count int) error {
	table, err := typetable.Load(path, count)
	if err != nil {
		return err
	}
	for i := range table {
		d := &table[i]
		fmt.Printf("%d. %s QuantFields: %d\n", i, d.Name, d.QuantFields())
		for _, f := range d.Fields {
			fmt.Printf("   Field: %s Format: %d Offset: %d BaseType: %d\n",
				f.Name, f.Format, f.Offset, f.BaseTypeIndex)
		}
	}
	return nil
}

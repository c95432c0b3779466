package cli

import (
	"assettree/internal/engine/records"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

const defaultConfigPath = "./data/config/assettree.toml"

const (
	commandBuild      = "build"
	commandDuplicates = "duplicates"
	commandServe      = "serve"
	commandUI         = "ui"
	commandVersion    = "version"
)

type cliOptions struct {
	command    string
	configPath string
	verbose    bool

	csvPath      string
	treeName     string
	workbookName string
	render       string
	output       string
	push         bool

	strategy      string
	keep          []string
	lookup        bool
	defaultParent string
	groupCol      string
	keyCol        string
	valueCol      string
	attrCols      []string

	watch bool

	args []string
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: assettree <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  build       build a tree from an item CSV, optionally render and push it")
	fmt.Fprintln(w, "  duplicates  report conflicting (group, key) values in a lookup CSV")
	fmt.Fprintln(w, "  serve       run the MCP tool server")
	fmt.Fprintln(w, "  ui          browse in-memory trees in a terminal UI")
	fmt.Fprintln(w, "  version     print the version and exit")
}

func parseOptions(args []string) (cliOptions, error) {
	if len(args) == 0 {
		return cliOptions{}, fmt.Errorf("a command is required")
	}
	opts := cliOptions{command: strings.ToLower(strings.TrimSpace(args[0]))}
	fs := pflag.NewFlagSet("assettree "+opts.command, pflag.ContinueOnError)

	fs.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to config file")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	switch opts.command {
	case commandBuild:
		fs.StringVar(&opts.csvPath, "csv", "", "Item CSV to build from")
		fs.StringVar(&opts.treeName, "tree", "", "Tree name")
		fs.StringVar(&opts.workbookName, "workbook", "", "Workbook name")
		fs.StringVar(&opts.render, "render", "", "Render the tree in this format (text, json, mermaid, dot, plantuml, markdown, tsv, csv)")
		fs.StringVarP(&opts.output, "output", "o", "", "Write the rendered tree to this file instead of stdout")
		fs.BoolVar(&opts.push, "push", false, "Push the tree to the remote store after building")
		fs.BoolVar(&opts.lookup, "lookup", false, "Treat the CSV as a lookup table and build lookup items")
		fs.StringVar(&opts.strategy, "strategy", "", "Duplicate strategy for --lookup (keep_first, keep_last, remove_all)")
		fs.StringVar(&opts.defaultParent, "default-parent", "", "Parent path for lookup items without an assignment")
		addRoleFlags(fs, &opts)
	case commandDuplicates:
		fs.StringVar(&opts.csvPath, "csv", "", "Lookup CSV to inspect")
		fs.StringVar(&opts.strategy, "strategy", "", "Resolve with this strategy and print surviving records")
		fs.StringArrayVar(&opts.keep, "keep", nil, "Keep positions for a group, as <group_key>=<pos>[,<pos>...] (repeatable)")
		addRoleFlags(fs, &opts)
	case commandServe:
		fs.BoolVar(&opts.watch, "watch", false, "Rebuild configured ingest sources when their files change")
	case commandUI:
		fs.BoolVar(&opts.watch, "watch", false, "Rebuild configured ingest sources when their files change")
	case commandVersion:
	default:
		return cliOptions{}, fmt.Errorf("unknown command %q", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return cliOptions{}, err
	}
	opts.args = fs.Args()
	return opts, nil
}

func addRoleFlags(fs *pflag.FlagSet, opts *cliOptions) {
	fs.StringVar(&opts.groupCol, "group-col", "Group", "Lookup group column")
	fs.StringVar(&opts.keyCol, "key-col", "Key", "Lookup key column")
	fs.StringVar(&opts.valueCol, "value-col", "Value", "Lookup value column")
	fs.StringSliceVar(&opts.attrCols, "attr-col", nil, "Extra columns carried through resolution (comma separated)")
}

func (o cliOptions) roles() records.ColumnRoles {
	return records.ColumnRoles{Group: o.groupCol, Key: o.keyCol, Value: o.valueCol, Attrs: o.attrCols}
}

func validateOptions(opts cliOptions) error {
	if len(opts.args) > 0 {
		return fmt.Errorf("%s does not accept positional arguments", opts.command)
	}
	switch opts.command {
	case commandBuild:
		if strings.TrimSpace(opts.csvPath) == "" {
			return fmt.Errorf("build requires --csv")
		}
		if strings.TrimSpace(opts.treeName) == "" || strings.TrimSpace(opts.workbookName) == "" {
			return fmt.Errorf("build requires --tree and --workbook")
		}
		if opts.output != "" && opts.render == "" {
			return fmt.Errorf("--output requires --render")
		}
		if !opts.lookup && (opts.strategy != "" || opts.defaultParent != "") {
			return fmt.Errorf("--strategy and --default-parent require --lookup")
		}
	case commandDuplicates:
		if strings.TrimSpace(opts.csvPath) == "" {
			return fmt.Errorf("duplicates requires --csv")
		}
		if len(opts.keep) > 0 && opts.strategy != "" {
			return fmt.Errorf("--keep and --strategy cannot be combined")
		}
	}
	return nil
}

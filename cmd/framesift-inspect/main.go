// Command framesift-inspect runs inspection workflows against a capture
// dump directly, without a server. The result is printed to stdout as a
// single JSON envelope; logs go to stderr so stdout stays pipeable.
//
// Usage:
//
//	framesift-inspect -dump capture.json -workflow buffer-details \
//	    -request '{"resource":"Particles","preview":4}'
//
// The request flag accepts inline JSON or @path to read it from a file.
// The change workflows (buffer-changes, texture-changes, binding-changes)
// also accept -output to export flattened change rows as Parquet
// (.parquet) or line-delimited JSON (.jsonl).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/export"
	"github.com/framesift/framesift/internal/inspect"
	"github.com/framesift/framesift/internal/logging"
	"github.com/framesift/framesift/internal/replay"
)

var workflows = []string{
	"buffer-details",
	"buffer-changes",
	"texture-changes",
	"binding-changes",
	"resource-writes",
	"resource-uses",
	"search-resources",
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dump     = flag.String("dump", "", "path to the capture dump (required)")
		workflow = flag.String("workflow", "", "workflow to run: "+strings.Join(workflows, ", "))
		request  = flag.String("request", "", "workflow request as inline JSON, or @path to a file")
		output   = flag.String("output", "", "write change rows to this path (.parquet or .jsonl)")
		logLevel = flag.String("log-level", "warn", "log verbosity: debug, info, warn, error")
	)
	flag.Parse()

	if *dump == "" || *workflow == "" {
		fmt.Fprintln(os.Stderr, "error: -dump and -workflow are required")
		flag.Usage()
		return 2
	}
	if !slices.Contains(workflows, *workflow) {
		fmt.Fprintf(os.Stderr, "error: unknown workflow %q (want one of: %s)\n",
			*workflow, strings.Join(workflows, ", "))
		return 2
	}
	logger := logging.NewStructuredLogger(logging.LoggerConfig{
		Level:         logging.ParseLevel(*logLevel),
		EnableConsole: true,
		Component:     "framesift-inspect",
		Output:        os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, rows, err := execute(ctx, logger, *dump, *workflow, *request)
	if err == nil && *output != "" {
		err = exportRows(*output, rows)
	}
	if err != nil {
		emit(envelope{OK: false, Error: describeError(err)})
		return 1
	}
	return emit(envelope{OK: true, Result: result})
}

// execute loads the dump and dispatches the workflow. The second return
// carries flattened change rows for the workflows that produce them, so
// run can honor -output without re-running anything.
func execute(ctx context.Context, logger *logging.StructuredLogger, dumpPath, workflow, request string) (any, []export.ChangeRow, error) {
	body, err := readRequest(request)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := replay.LoadDump(dumpPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug(ctx, "capture loaded", map[string]any{
		"path":    dumpPath,
		"capture": ctrl.Capture(),
	})
	ins := inspect.New(ctrl, inspect.WithLogger(logger))

	switch workflow {
	case "buffer-details":
		var req inspect.BufferDetailsRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.BufferDetails(ctx, req)
		return res, nil, err
	case "buffer-changes":
		var req inspect.BufferChangesRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.BufferChanges(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		return res, export.BufferChangeRows(ctrl.Capture(), res), nil
	case "texture-changes":
		var req inspect.TextureChangesRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.TextureChanges(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		return res, export.TextureChangeRows(ctrl.Capture(), res), nil
	case "binding-changes":
		var req inspect.BindingChangesRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.BindingChanges(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		return res, export.BindingChangeRows(ctrl.Capture(), res), nil
	case "resource-writes":
		var req inspect.ResourceWritesRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.ResourceWrites(ctx, req)
		return res, nil, err
	case "resource-uses":
		var req inspect.ResourceUsesRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.ResourceUses(ctx, req)
		return res, nil, err
	case "search-resources":
		var req inspect.SearchResourcesRequest
		if err := parseRequest(body, &req); err != nil {
			return nil, nil, err
		}
		res, err := ins.SearchResources(ctx, req)
		return res, nil, err
	}
	// run rejects unknown workflows before dispatch.
	return nil, nil, errors.NewValidationError("framesift-inspect",
		fmt.Sprintf("unknown workflow %q", workflow))
}

// readRequest resolves the -request flag: empty means an empty object,
// @path reads the file, anything else is taken as inline JSON.
func readRequest(s string) ([]byte, error) {
	if s == "" {
		return []byte("{}"), nil
	}
	if rest, ok := strings.CutPrefix(s, "@"); ok {
		data, err := os.ReadFile(rest)
		if err != nil {
			return nil, errors.WrapValidationError(err, "framesift-inspect", "reading request file")
		}
		return data, nil
	}
	return []byte(s), nil
}

func parseRequest(body []byte, req any) error {
	if err := json.Unmarshal(body, req); err != nil {
		return errors.WrapValidationError(err, "framesift-inspect", "parsing request JSON")
	}
	return nil
}

// exportRows writes flattened change rows to path, choosing the codec by
// extension. Workflows that do not diff anything return no rows and make
// -output an error rather than silently writing an empty file.
func exportRows(path string, rows []export.ChangeRow) error {
	if rows == nil {
		return errors.NewValidationError("framesift-inspect",
			"-output applies only to buffer-changes, texture-changes and binding-changes")
	}
	ext := filepath.Ext(path)
	if ext != ".parquet" && ext != ".jsonl" {
		return errors.NewValidationError("framesift-inspect",
			fmt.Sprintf("unsupported output extension %q (want .parquet or .jsonl)", ext))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapExportError(err, "framesift-inspect", "creating output file")
	}
	var werr error
	if ext == ".parquet" {
		werr = export.WriteChangeRows(f, rows)
	} else {
		werr = export.NewLinesWriter(f).WriteAll(rows)
	}
	if cerr := f.Close(); werr == nil && cerr != nil {
		werr = errors.WrapExportError(cerr, "framesift-inspect", "closing output file")
	}
	return werr
}

type envelope struct {
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func describeError(err error) *errorBody {
	var se *errors.StructuredError
	if errors.As(err, &se) {
		return &errorBody{Type: string(se.Type), Message: err.Error()}
	}
	return &errorBody{Type: "internal", Message: err.Error()}
}

func emit(env envelope) int {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: encoding result: %v\n", err)
		return 1
	}
	fmt.Println(string(data))
	return 0
}

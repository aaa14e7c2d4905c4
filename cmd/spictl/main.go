package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/spilink/internal/config"
	"github.com/danmuck/spilink/internal/link"
	"github.com/danmuck/spilink/internal/observability"
	"github.com/danmuck/spilink/internal/protocol/messaging"
	"github.com/danmuck/spilink/internal/transport"
)

const usage = `usage: spictl [-config path] [-addr host:port] <command> [args]

commands:
  streams                      list device streams
  size <stream> [meta]         declared size of the head message or its metadata
  data <stream> [offset size]  write the head message body to -out
  meta <stream>                print decoded metadata as JSON
  message <stream>             print data size and metadata as JSON
  chunk <stream>               stream the head message body to -out
  pop <stream>                 discard the head message
  popall                       discard every queued message
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("spictl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "client config path (defaults when empty)")
	addr := fs.String("addr", "", "bridge address override")
	out := fs.String("out", "-", "output path for data/chunk, - for stdout")
	level := fs.String("log-level", "", "log level override")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "spictl: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Transport.Address = *addr
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	observability.InitLogger("spictl", cfg.LogLevel)

	conn, err := transport.Dial(ctx, cfg.Transport)
	if err != nil {
		fmt.Fprintf(stderr, "spictl: %v\n", err)
		return 1
	}
	engine := link.New(conn, cfg.Link)
	defer engine.Close()

	if err := execute(engine, fs.Args(), stdout, *out); err != nil {
		fmt.Fprintf(stderr, "spictl: %v\n", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("invalid arguments")

func execute(e *link.Engine, args []string, stdout io.Writer, outPath string) error {
	cmd, rest := strings.ToLower(args[0]), args[1:]
	need := func(n int) error {
		if len(rest) < n {
			return fmt.Errorf("%w: %s needs %d argument(s)", errUsage, cmd, n)
		}
		return nil
	}
	switch cmd {
	case "streams":
		streams, err := e.GetStreams()
		if err != nil {
			return err
		}
		for _, s := range streams {
			fmt.Fprintln(stdout, s)
		}
		return nil
	case "size":
		if err := need(1); err != nil {
			return err
		}
		kind := messaging.GetSize
		if len(rest) > 1 && rest[1] == "meta" {
			kind = messaging.GetMetaSize
		}
		size, err := e.GetSize(kind, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, size)
		return nil
	case "data":
		if err := need(1); err != nil {
			return err
		}
		var data link.Data
		var err error
		if len(rest) >= 3 {
			offset, perr := parseUint32(rest[1])
			if perr != nil {
				return perr
			}
			size, perr := parseUint32(rest[2])
			if perr != nil {
				return perr
			}
			data, err = e.ReqDataPartial(rest[0], offset, size)
		} else {
			data, err = e.ReqData(rest[0])
		}
		if err != nil {
			return err
		}
		return writeOut(stdout, outPath, func(w io.Writer) error {
			_, err := w.Write(data.Bytes)
			return err
		})
	case "meta":
		if err := need(1); err != nil {
			return err
		}
		meta, err := e.ReqMetadata(rest[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, metadataView(meta))
	case "message":
		if err := need(1); err != nil {
			return err
		}
		msg, err := e.ReqMessage(rest[0])
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]any{
			"stream":   msg.Data.Stream,
			"type":     msg.Type.String(),
			"size":     msg.Data.Size(),
			"metadata": metadataView(msg.Metadata),
		})
	case "chunk":
		if err := need(1); err != nil {
			return err
		}
		return writeOut(stdout, outPath, func(w io.Writer) error {
			var werr error
			err := e.ChunkMessage(rest[0], func(chunk []byte, _ uint32) {
				if werr == nil {
					_, werr = w.Write(chunk)
				}
			})
			if err != nil {
				return err
			}
			return werr
		})
	case "pop":
		if err := need(1); err != nil {
			return err
		}
		return e.PopMessage(rest[0])
	case "popall":
		return e.PopMessages()
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func metadataView(meta link.Metadata) map[string]any {
	view := map[string]any{"type": meta.Type.String(), "size": meta.Size()}
	if obj, err := meta.Decode(); err == nil {
		view["object"] = obj
	} else {
		view["decode_error"] = err.Error()
	}
	return view
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeOut(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func parseUint32(raw string) (uint32, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a uint32", errUsage, raw)
	}
	return uint32(v), nil
}

// Command audit-report generates the scope/role consistency report from an
// endpoint manifest and the provider's role bindings. Output is JSON or CSV
// rows for an external formatter; no spreadsheet rendering happens here.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sixgroup-security/guardian-backend/audit"
	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/rolemap"
)

var log = logrus.New()

func main() {
	endpointsPath := flag.String("endpoints", "", "JSON file with endpoint descriptors (method, path, required_scopes)")
	bindingsRef := flag.String("bindings", "", "role bindings: JSON file path or http(s) URL returning role -> scopes")
	expectedUsePath := flag.String("expected-use", "", "optional JSON file with role -> expected scopes, enables privilege checks")
	output := flag.String("o", "-", "output file, - for stdout")
	format := flag.String("format", "json", "output format: json or csv")
	timeout := flag.Duration("timeout", 10*time.Second, "bindings fetch timeout")
	flag.Parse()

	if *endpointsPath == "" || *bindingsRef == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(*endpointsPath, *bindingsRef, *expectedUsePath, *output, *format, *timeout); err != nil {
		log.WithError(err).Fatal("audit report failed")
	}
}

func run(endpointsPath, bindingsRef, expectedUsePath, output, format string, timeout time.Duration) error {
	endpoints, err := loadEndpoints(endpointsPath)
	if err != nil {
		return fmt.Errorf("load endpoints: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	bindings, err := loadBindings(ctx, bindingsRef)
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}

	var opts []audit.Option
	if expectedUsePath != "" {
		expected, err := loadScopeMap(expectedUsePath)
		if err != nil {
			return fmt.Errorf("load expected-use: %w", err)
		}
		opts = append(opts, audit.WithExpectedUse(expected))
	}

	log.WithFields(logrus.Fields{"endpoints": len(endpoints), "roles": len(bindings)}).Info("creating report")
	report, err := audit.BuildReport(core.SystemClock{}, endpoints, bindings, opts...)
	if err != nil {
		return err
	}

	out := os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case "csv":
		w := csv.NewWriter(out)
		if err := w.Write([]string{"category", "name", "detail"}); err != nil {
			return err
		}
		for _, f := range report.Findings {
			if err := w.Write([]string{string(f.Category), f.Name, f.Detail}); err != nil {
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	log.WithField("findings", len(report.Findings)).Info("finished")
	return nil
}

func loadEndpoints(path string) ([]core.EndpointDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest []struct {
		Method         string   `json:"method"`
		Path           string   `json:"path"`
		RequiredScopes []string `json:"required_scopes"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	out := make([]core.EndpointDescriptor, 0, len(manifest))
	for _, m := range manifest {
		out = append(out, core.EndpointDescriptor{
			Method:         strings.ToUpper(m.Method),
			Path:           m.Path,
			RequiredScopes: core.NormalizeScopes(m.RequiredScopes),
		})
	}
	return out, nil
}

func loadBindings(ctx context.Context, ref string) ([]core.RoleBinding, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		src, err := rolemap.NewHTTPSource(ref)
		if err != nil {
			return nil, err
		}
		return src.Bindings(ctx)
	}
	m, err := loadScopeMap(ref)
	if err != nil {
		return nil, err
	}
	return rolemap.FromMap(m), nil
}

func loadScopeMap(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Command staticlint runs the analyzers enforced on the signup server in a
// single multichecker: passes from the Go toolchain, ineffassign, nilerr,
// the noosexit analyzer and a selection of staticcheck analyzers.
//
// The staticcheck selection is read from config.json next to the binary:
//
//	{"staticcheck": ["SA1000", "SA4006", "ST1005"]}
//
// Without the file every SA-class analyzer is enabled.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/signup/cmd/staticlint/noosexit"
)

const configFileName = `config.json`

type configData struct {
	Staticcheck []string `json:"staticcheck"`
}

func loadConfig() (configData, error) {
	executable, err := os.Executable()
	if err != nil {
		return configData{}, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(executable), configFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return configData{}, nil
	}
	if err != nil {
		return configData{}, err
	}

	var cfg configData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return configData{}, fmt.Errorf("%s: %w", configFileName, err)
	}
	return cfg, nil
}

func selectStaticcheck(names []string) []*analysis.Analyzer {
	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		enabled[name] = true
	}

	var result []*analysis.Analyzer
	for _, v := range staticcheck.Analyzers {
		name := v.Analyzer.Name
		if enabled[name] || (len(enabled) == 0 && strings.HasPrefix(name, "SA")) {
			result = append(result, v.Analyzer)
		}
	}
	return result
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	checks := []*analysis.Analyzer{
		copylock.Analyzer,
		httpresponse.Analyzer, // response bodies of the user service calls
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		printf.Analyzer,
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noosexit.Analyzer,
	}
	checks = append(checks, selectStaticcheck(cfg.Staticcheck)...)

	multichecker.Main(checks...)
}

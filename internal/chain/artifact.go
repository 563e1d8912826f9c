package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact is one compiled contract.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
	Path     string
}

// Artifacts indexes compiled contracts by name.
type Artifacts struct {
	byName    map[string]*Artifact
	ambiguous map[string][]string
}

// artifactFile covers both the Hardhat and the Foundry layout. Hardhat
// stores bytecode as a hex string; Foundry nests it under "object".
type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// LoadArtifacts reads every contract artifact under dir. Debug files and
// JSON without an "abi" field, such as Foundry build-info, are skipped.
func LoadArtifacts(dir string) (*Artifacts, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".json") && !strings.HasSuffix(path, ".dbg.json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan artifacts %s: %w", dir, err)
	}
	sort.Strings(paths)

	a := &Artifacts{
		byName:    make(map[string]*Artifact),
		ambiguous: make(map[string][]string),
	}
	for _, path := range paths {
		art, err := readArtifact(path)
		if err != nil {
			return nil, err
		}
		if art == nil {
			continue
		}
		if prev, ok := a.byName[art.Name]; ok {
			if !bytes.Equal(prev.Bytecode, art.Bytecode) {
				a.ambiguous[art.Name] = append(a.ambiguous[art.Name], path)
			}
			continue
		}
		a.byName[art.Name] = art
	}
	return a, nil
}

func readArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var f artifactFile
	if err := json.Unmarshal(data, &f); err != nil {
		// Not every JSON file in an output tree is an artifact.
		return nil, nil
	}
	if len(f.ABI) == 0 || f.ABI[0] != '[' {
		return nil, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return nil, fmt.Errorf("artifact %s: abi: %w", path, err)
	}
	code, err := decodeBytecode(f.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: bytecode: %w", path, err)
	}

	name := f.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: code, Path: path}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var hex string
	if raw[0] == '{' {
		var nested struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, err
		}
		hex = nested.Object
	} else if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, err
	}
	if hex == "" || hex == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(hex, "0x") {
		hex = "0x" + hex
	}
	if strings.Contains(hex, "__") {
		return nil, fmt.Errorf("unlinked library placeholder")
	}
	return hexutil.Decode(hex)
}

// Get returns the artifact for name.
func (a *Artifacts) Get(name string) (*Artifact, error) {
	if paths, ok := a.ambiguous[name]; ok {
		return nil, fmt.Errorf("artifact %s is ambiguous: also defined in %s", name, strings.Join(paths, ", "))
	}
	art, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("artifact %s not found", name)
	}
	return art, nil
}

// Names returns every artifact name, sorted.
func (a *Artifacts) Names() []string {
	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

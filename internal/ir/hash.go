package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the hashed
// shape to change without colliding with older journals.
const (
	DomainFuture = "keystone/future/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DefinitionHash fingerprints what a future does: its kind, artifact,
// method, target, inputs and literal value. References hash as their
// "Module#id" string, so the hash is known before execution and does not
// depend on the results of dependencies. Ordering-only dependencies and the
// declaration index are excluded.
func DefinitionHash(f *Future) (string, error) {
	obj := IRObject{
		"ref":  IRString(f.Ref.String()),
		"kind": IRString(string(f.Kind)),
	}
	if f.Artifact != "" {
		obj["artifact"] = IRString(f.Artifact)
	}
	if f.Method != "" {
		obj["method"] = IRString(f.Method)
	}
	if f.Target != nil {
		obj["target"] = argForHash(*f.Target)
	}
	inputs := make(IRArray, len(f.Inputs))
	for i, in := range f.Inputs {
		inputs[i] = argForHash(in)
	}
	obj["inputs"] = inputs
	if f.Value != nil {
		if _, isNull := f.Value.(IRNull); !isNull {
			obj["value"] = f.Value
		}
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("definition hash %s: %w", f.Ref, err)
	}
	return hashWithDomain(DomainFuture, canonical), nil
}

func argForHash(a Arg) IRValue {
	if a.Ref != nil {
		return IRObject{"ref": IRString(a.Ref.String())}
	}
	if a.Literal == nil {
		return IRObject{"null": IRBool(true)}
	}
	if _, isNull := a.Literal.(IRNull); isNull {
		return IRObject{"null": IRBool(true)}
	}
	return IRObject{"lit": a.Literal}
}

package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
)

const declarationsHeader = `// This file is generated by svcbuilder. Do not edit.

export declare const __DEVELOPMENT__: boolean;
export declare const __PRODUCTION__: boolean;
export declare const __TEST__: boolean;
export declare const __TEST_JEST__: boolean;
export declare const __BACKEND_SERVICES__: string[];
export declare const __FRONTEND_SERVICES__: string[];
`

// ConstantName builds the identifier used for a per-service declaration, for
// example ConstantName("backend", "api", "SERVICE") is __BACKEND_API_SERVICE__.
func ConstantName(kind config.ServiceKind, service, suffix string) string {
	return "__" + identifier(string(kind)) + "_" + identifier(service) + "_" + suffix + "__"
}

func identifier(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// renderDeclarations produces the ambient declarations for p in service order.
func renderDeclarations(p *config.Project) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(declarationsHeader)
	for _, s := range p.Services {
		subdomain, err := marshalString(s.Subdomain)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "export declare const %s: boolean;\n", ConstantName(s.Kind, s.Name, "SERVICE"))
		fmt.Fprintf(&buf, "export declare const %s: %s;\n", ConstantName(s.Kind, s.Name, "SUBDOMAIN"), subdomain)
	}
	return buf.Bytes(), nil
}

func writeDeclarations(path string, p *config.Project) error {
	content, err := renderDeclarations(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeAtomic(path, content, 0o644)
}

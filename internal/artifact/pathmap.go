package artifact

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"

	"git.home.luguber.info/inful/svcbuilder/internal/alias"
)

// ErrMalformedPathMapping is returned when the existing path-mapping file is not a JSON object.
var ErrMalformedPathMapping = stderrors.New("malformed path-mapping file")

// pathsFor renders the rule table as an ordered "paths" object.
func pathsFor(t *alias.Table) (json.RawMessage, error) {
	obj := make(object, 0, len(t.Rules))
	for _, r := range t.Rules {
		targets, err := json.Marshal(r.Targets)
		if err != nil {
			return nil, err
		}
		obj = append(obj, member{Key: r.Pattern, Value: targets})
	}
	return obj.marshal()
}

// rewritePathMapping returns content with compilerOptions.paths replaced by the
// rules of t. Every other key keeps its value and position.
func rewritePathMapping(content []byte, t *alias.Table) ([]byte, error) {
	root, err := decodeObject(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPathMapping, err)
	}

	var opts object
	if raw, ok := root.get("compilerOptions"); ok && string(raw) != "null" {
		opts, err = decodeObject(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: compilerOptions: %v", ErrMalformedPathMapping, err)
		}
	}

	paths, err := pathsFor(t)
	if err != nil {
		return nil, err
	}
	opts = opts.set("paths", paths)

	rawOpts, err := opts.marshal()
	if err != nil {
		return nil, err
	}
	root = root.set("compilerOptions", rawOpts)

	compact, err := root.marshal()
	if err != nil {
		return nil, err
	}
	return indent(compact)
}

// updatePathMapping rewrites the file at path. It reports false without error
// when the file does not exist.
func updatePathMapping(path string, t *alias.Table) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	updated, err := rewritePathMapping(content, t)
	if err != nil {
		return false, err
	}
	if err := writeAtomic(path, updated, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

package pkgmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/gjson"
)

// ManifestFile is the project manifest name.
const ManifestFile = "package.json"

// Scripts returns the script names declared in dir's package.json, sorted.
func Scripts(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON", ManifestFile)
	}

	var names []string
	gjson.GetBytes(data, "scripts").ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	sort.Strings(names)
	return names, nil
}

// Script returns the command line of a script and whether it is declared.
func Script(dir, name string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return "", false, err
	}
	if !gjson.ValidBytes(data) {
		return "", false, fmt.Errorf("%s: invalid JSON", ManifestFile)
	}

	r := gjson.GetBytes(data, "scripts."+gjson.Escape(name))
	if !r.Exists() {
		return "", false, nil
	}
	return r.String(), true, nil
}

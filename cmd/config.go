// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// defaultConfigPath is read for flag defaults if it exists
const defaultConfigPath = "~/.config/expurgator/config.yaml"

// yamlLoader is a [kong.ConfigurationLoader] for YAML files. The keys are flag
// names, dashes may be written as underscores.
//
//	compression: 9
//	with-headers: true
//	index: 2
func yamlLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot parse config file")
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (interface{}, error) {
		for _, key := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			if v, ok := values[key]; ok {
				return fmt.Sprint(v), nil
			}
		}
		return nil, nil
	}
	return f, nil
}

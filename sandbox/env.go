// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"fmt"
	"strings"
)

// Environment is the complete environment of a launched command. It
// replaces the inherited environment entirely. Setting a name twice keeps
// the last value at the position of the first.
type Environment struct {
	names  []string
	values map[string]string
}

// ParseEnv builds an Environment from NAME=VALUE assignments.
func ParseEnv(assignments []string) (Environment, error) {
	var env Environment
	for _, assignment := range assignments {
		if err := env.Parse(assignment); err != nil {
			return Environment{}, err
		}
	}
	return env, nil
}

// Parse sets one NAME=VALUE assignment. VALUE may be empty or contain
// further '=' characters.
func (e *Environment) Parse(assignment string) error {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("environment assignment %q: expected NAME=VALUE", assignment)
	}
	if err := validName(name); err != nil {
		return fmt.Errorf("environment assignment %q: %w", assignment, err)
	}
	e.Set(name, value)
	return nil
}

// Set assigns name. Callers are expected to pass a valid name; Parse
// validates user input.
func (e *Environment) Set(name, value string) {
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if _, exists := e.values[name]; !exists {
		e.names = append(e.names, name)
	}
	e.values[name] = value
}

// Merge sets every variable of other, in its order.
func (e *Environment) Merge(other Environment) {
	for _, name := range other.names {
		e.Set(name, other.values[name])
	}
}

// Get returns the value of name.
func (e Environment) Get(name string) (string, bool) {
	value, ok := e.values[name]
	return value, ok
}

// Len returns the number of variables.
func (e Environment) Len() int { return len(e.names) }

// List returns NAME=VALUE strings in first-insertion order, the form
// execve takes.
func (e Environment) List() []string {
	list := make([]string, 0, len(e.names))
	for _, name := range e.names {
		list = append(list, name+"="+e.values[name])
	}
	return list
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty variable name")
	}
	if strings.ContainsAny(name, "=\x00") {
		return fmt.Errorf("invalid variable name %q", name)
	}
	return nil
}

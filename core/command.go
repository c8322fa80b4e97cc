package core

import (
	"errors"
	"sync"
)

// ErrUnknownCommand is returned by Dispatch for a byte with no handler.
var ErrUnknownCommand = errors.New("unknown command")

// CommandHandler handles a host command. args holds the parameter bytes the
// command was registered with, or is empty for commands without parameters.
type CommandHandler func(args []byte) error

// Command describes one host command byte
type Command struct {
	Code    byte
	Name    string
	Params  int // parameter bytes that follow the command on the wire
	Handler CommandHandler
}

// CommandRegistry maps command bytes to their handlers
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[byte]*Command
	order      []byte
	dictionary string // Human readable command table
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[byte]*Command),
	}
}

// Register adds or replaces the handler for a command byte
func (r *CommandRegistry) Register(code byte, name string, params int, handler CommandHandler) *Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := &Command{
		Code:    code,
		Name:    name,
		Params:  params,
		Handler: handler,
	}

	if _, exists := r.commands[code]; !exists {
		r.order = append(r.order, code)
	}
	r.commands[code] = cmd

	r.rebuildDictionary()

	return cmd
}

// GetCommand retrieves a command by its byte
func (r *CommandRegistry) GetCommand(code byte) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[code]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for code
func (r *CommandRegistry) Dispatch(code byte, args []byte) error {
	cmd, ok := r.GetCommand(code)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}

	return cmd.Handler(args)
}

// GetDictionary returns one line per command in registration order
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary rebuilds the dictionary string
// Must be called with lock held
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for _, code := range r.order {
		cmd := r.commands[code]
		dict += "0x" + hex2(code) + " " + cmd.Name
		if cmd.Params > 0 {
			dict += " params=" + itoa(cmd.Params)
		}
		dict += "\n"
	}
	r.dictionary = dict
}

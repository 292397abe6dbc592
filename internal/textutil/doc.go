// Package textutil sanitizes free-form names (session names, save file stems)
// into tokens that are safe in file names and sort predictably.
package textutil

// Package state tracks per-chat dialogue sessions for multi-step bot
// commands. Sessions are held in process memory only and are lost on
// restart by design.
package state

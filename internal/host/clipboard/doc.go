// Package clipboard provides host clipboard backends for committed
// session output.
//
// Three backends are available: Command pipes text through an external
// clipboard tool (pbcopy, wl-copy, xclip, xsel), OSC52 emits the
// terminal escape sequence for clipboard writes over SSH, and Memory
// holds text in-process for hosts and tests without system access.
package clipboard

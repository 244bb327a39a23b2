package sftpwire

import (
	"fmt"
	"os"
)

// longname renders the "ls -l"-style line
// mandates for READDIR entries:
//
//	drwxrwxr-x   1 owner    group    <size right-aligned to 10> Mon DD HH:MM name
func longname(fi os.FileInfo) string {
	mode := "-rw-r--r--"
	if fi.IsDir() {
		mode = "drwxrwxr-x"
	}
	ts := fi.ModTime().Format("Jan _2 15:04")
	return fmt.Sprintf("%s   1 owner    group    %10d %s %s", mode, fi.Size(), ts, fi.Name())
}

package log

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"testing"
)

func TestWriter(t *testing.T) {
	w := NewAsyncFileWriter("./hello.log", 100, 0)
	w.Start()
	w.Write([]byte("hello\n"))
	w.Write([]byte("world\n"))
	w.Stop()
	files, _ := ioutil.ReadDir("./")
	for _, f := range files {
		fn := f.Name()
		fmt.Println(fn)
		if strings.HasPrefix(fn, "hello") {
			t.Log(fn)
			content, _ := ioutil.ReadFile(fn)
			t.Log(content)
			os.Remove(fn)
		}
	}
}

func TestWriterFlush(t *testing.T) {
	w := NewAsyncFileWriter("./hello2.log", 1000, 0)
	w.Start()
	w.Write([]byte("hello\n"))
	w.Write([]byte("cruel\n"))
	w.Write([]byte("world\n"))
	if err := w.Flush(); err != nil {
		t.Errorf("flush failed: %v", err)
	}
	w.Stop()
	files, _ := ioutil.ReadDir("./")
	for _, f := range files {
		fn := f.Name()
		if strings.HasPrefix(fn, "hello2") {
			content, _ := ioutil.ReadFile(fn)
			if !strings.Contains(string(content), "cruel") {
				t.Errorf("expected log content to contain written lines, got %q", content)
			}
			os.Remove(fn)
		}
	}
}

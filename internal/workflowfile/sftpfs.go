// ABOUTME: afero.Fs adapter over an *sftp.Client
// ABOUTME: Wraps an established sftp session so remote paths read like local ones

package workflowfile

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

func loadSigner(keyFile, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read ssh key file %s: %w", keyFile, err)
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(data)
}

// SFTPFs implements afero.Fs over a remote SFTP session, used for
// sftp:// / ssh:// task-file paths.
type SFTPFs struct {
	client *sftp.Client
}

// NewSFTPFs wraps an established sftp.Client.
func NewSFTPFs(client *sftp.Client) *SFTPFs {
	return &SFTPFs{client: client}
}

func (s *SFTPFs) Create(name string) (afero.File, error) {
	f, err := s.client.Create(name)
	if err != nil {
		return nil, err
	}
	return &SFTPFile{File: f}, nil
}

func (s *SFTPFs) Mkdir(name string, _ os.FileMode) error {
	return s.client.Mkdir(name)
}

func (s *SFTPFs) MkdirAll(path string, _ os.FileMode) error {
	return s.client.MkdirAll(path)
}

func (s *SFTPFs) Open(name string) (afero.File, error) {
	f, err := s.client.Open(name)
	if err != nil {
		return nil, err
	}
	return &SFTPFile{File: f}, nil
}

func (s *SFTPFs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	f, err := s.client.OpenFile(name, flag)
	if err != nil {
		return nil, err
	}
	return &SFTPFile{File: f}, nil
}

func (s *SFTPFs) Remove(name string) error {
	return s.client.Remove(name)
}

func (s *SFTPFs) RemoveAll(path string) error {
	return s.client.RemoveAll(path)
}

func (s *SFTPFs) Rename(oldname, newname string) error {
	return s.client.Rename(oldname, newname)
}

func (s *SFTPFs) Stat(name string) (os.FileInfo, error) {
	return s.client.Stat(name)
}

func (s *SFTPFs) Name() string { return "SFTPFs" }

func (s *SFTPFs) Chmod(name string, mode os.FileMode) error {
	return s.client.Chmod(name, mode)
}

func (s *SFTPFs) Chown(name string, uid, gid int) error {
	return s.client.Chown(name, uid, gid)
}

func (s *SFTPFs) Chtimes(name string, atime, mtime time.Time) error {
	return s.client.Chtimes(name, atime, mtime)
}

// SFTPFile adapts *sftp.File to afero.File, adding the directory-listing and
// convenience methods afero expects that sftp.File doesn't provide directly.
type SFTPFile struct {
	*sftp.File
}

func (f *SFTPFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, fmt.Errorf("sftp: Readdir not supported on an open file handle")
}

func (f *SFTPFile) Readdirnames(n int) ([]string, error) {
	return nil, fmt.Errorf("sftp: Readdirnames not supported on an open file handle")
}

func (f *SFTPFile) WriteString(s string) (int, error) {
	return f.File.Write([]byte(s))
}


// ABOUTME: Resolves task-file paths to an afero.Fs, supporting file/s3/sftp/ssh schemes (exec-config is read from the local filesystem)
// ABOUTME: URI-scheme dispatch: bare paths stay local, s3:// and sftp:// resolve to remote backends

package workflowfile

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	s3fs "github.com/fclairamb/afero-s3"
	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// Credentials carries optional remote-access secrets, populated from
// environment variables.
type Credentials struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string

	SSHUser       string
	SSHPassword   string
	SSHKeyFile    string
	SSHPassphrase string
}

// ParsedPath describes the scheme-decomposed form of a workflow-file path.
type ParsedPath struct {
	Scheme string // "file", "s3", or "sftp" (ssh:// and scp:// map to "sftp")
	Host   string
	Port   string
	Bucket string
	Path   string
}

// ParsePath classifies path by URI scheme; bare filesystem paths are "file".
func ParsePath(path string) ParsedPath {
	if !strings.Contains(path, "://") {
		return ParsedPath{Scheme: "file", Path: path}
	}
	u, err := url.Parse(path)
	if err != nil {
		return ParsedPath{Scheme: "file", Path: path}
	}
	switch u.Scheme {
	case "s3":
		return ParsedPath{Scheme: "s3", Bucket: u.Host, Path: strings.TrimPrefix(u.Path, "/")}
	case "sftp", "ssh", "scp":
		return ParsedPath{Scheme: "sftp", Host: u.Hostname(), Port: u.Port(), Path: u.Path}
	default:
		return ParsedPath{Scheme: "file", Path: path}
	}
}

// GetFilesystem returns an afero.Fs rooted appropriately for p's scheme, and
// the path to use against that Fs (stripped of scheme/host for remote
// backends, unchanged for local files).
func GetFilesystem(p ParsedPath, creds Credentials) (afero.Fs, string, error) {
	switch p.Scheme {
	case "file", "":
		return afero.NewOsFs(), p.Path, nil
	case "s3":
		fs, err := newS3Filesystem(p.Bucket, creds)
		if err != nil {
			return nil, "", err
		}
		return fs, p.Path, nil
	case "sftp":
		fs, err := newSFTPFilesystem(p.Host, p.Port, creds)
		if err != nil {
			return nil, "", err
		}
		return fs, p.Path, nil
	default:
		return nil, "", fmt.Errorf("unsupported scheme %q", p.Scheme)
	}
}

func newS3Filesystem(bucket string, creds Credentials) (afero.Fs, error) {
	cfg := aws.NewConfig()
	if creds.AWSRegion != "" {
		cfg = cfg.WithRegion(creds.AWSRegion)
	}
	if creds.AWSAccessKeyID != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(creds.AWSAccessKeyID, creds.AWSSecretAccessKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return s3fs.NewFs(bucket, sess), nil
}

func newSFTPFilesystem(host, port string, creds Credentials) (afero.Fs, error) {
	if port == "" {
		port = "22"
	}
	clientConfig := &ssh.ClientConfig{
		User:            creds.SSHUser,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: support known_hosts verification
	}
	switch {
	case creds.SSHKeyFile != "":
		signer, err := loadSigner(creds.SSHKeyFile, creds.SSHPassphrase)
		if err != nil {
			return nil, err
		}
		clientConfig.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case creds.SSHPassword != "":
		clientConfig.Auth = []ssh.AuthMethod{ssh.Password(creds.SSHPassword)}
	}

	conn, err := ssh.Dial("tcp", fmt.Sprintf("%s:%s", host, port), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dial sftp host %s: %w", host, err)
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("start sftp session: %w", err)
	}
	return NewSFTPFs(client), nil
}

// Package pki loads the trusted root certificates (CSCA) that document
// signer certificates are checked against.
package pki

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/cloudflare/cfssl/crypto/pkcs7"
)

var (
	ErrNoCertificate        = errors.New("pki: no certificate found")
	ErrParseCertificate     = errors.New("pki: failed to parse certificate")
	ErrParsePKCS7           = errors.New("pki: failed to parse PKCS#7 bundle")
	ErrNoCertificatesInPKCS = errors.New("pki: no certificates in PKCS#7 bundle")
	ErrNoMatchingRoot       = errors.New("pki: no trusted root matches the certificate issuer")
)

// LoadRoots reads one or more certificates from PEM (CERTIFICATE or PKCS7
// blocks), concatenated DER, or a DER PKCS#7 certificate bundle.
func LoadRoots(data []byte) ([]*x509.Certificate, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoCertificate
	}

	if isPEM(data) {
		return decodePEM(data)
	}

	if certs, err := x509.ParseCertificates(data); err == nil && len(certs) > 0 {
		return certs, nil
	}
	return decodePKCS7(data)
}

// LoadRoot returns the first certificate found in data.
func LoadRoot(data []byte) (*x509.Certificate, error) {
	certs, err := LoadRoots(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// LoadRootsFile reads roots from a file.
func LoadRootsFile(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roots: %w", err)
	}
	return LoadRoots(data)
}

// SelectIssuer returns the root whose subject equals the raw issuer name of
// a certificate. A single root is returned as is; its signature check
// decides whether it really issued the certificate.
func SelectIssuer(roots []*x509.Certificate, rawIssuer []byte) (*x509.Certificate, error) {
	if len(roots) == 0 {
		return nil, ErrNoCertificate
	}
	if len(roots) == 1 {
		return roots[0], nil
	}
	for _, root := range roots {
		if bytes.Equal(root.RawSubject, rawIssuer) {
			return root, nil
		}
	}
	return nil, ErrNoMatchingRoot
}

func isPEM(data []byte) bool {
	return bytes.HasPrefix(data, []byte("-----BEGIN"))
}

func decodePEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		data = rest

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParseCertificate, err)
			}
			certs = append(certs, cert)
		case "PKCS7":
			bundle, err := decodePKCS7(block.Bytes)
			if err != nil {
				return nil, err
			}
			certs = append(certs, bundle...)
		}
	}

	if len(certs) == 0 {
		return nil, ErrNoCertificate
	}
	return certs, nil
}

func decodePKCS7(data []byte) ([]*x509.Certificate, error) {
	p, err := pkcs7.ParsePKCS7(data)
	if err != nil {
		return nil, ErrParsePKCS7
	}
	if len(p.Content.SignedData.Certificates) == 0 {
		return nil, ErrNoCertificatesInPKCS
	}
	return p.Content.SignedData.Certificates, nil
}

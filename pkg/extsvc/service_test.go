package extsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type fakeWriter struct {
	svc ExtensionService

	latestSeq  int
	createdSeq int
	createErr  error

	version   Version
	deleteErr error
	deleted   bool
}

func (f *fakeWriter) Get(ctx context.Context, id uuid.UUID) (ExtensionService, error) {
	return f.svc, nil
}

func (f *fakeWriter) LatestSequence(ctx context.Context, serviceID uuid.UUID) (int, error) {
	return f.latestSeq, nil
}

func (f *fakeWriter) CreateVersion(ctx context.Context, serviceID uuid.UUID, sequence int, podSpecYAML, credentialRef string, observability []byte) (Version, error) {
	f.createdSeq = sequence
	if f.createErr != nil {
		return Version{}, f.createErr
	}
	return Version{ServiceID: serviceID, Sequence: sequence, CredentialRef: credentialRef}, nil
}

func (f *fakeWriter) GetVersion(ctx context.Context, id uuid.UUID) (Version, error) {
	return f.version, nil
}

func (f *fakeWriter) LatestVersion(ctx context.Context, serviceID uuid.UUID) (Version, error) {
	return f.version, nil
}

func (f *fakeWriter) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	f.deleted = true
	return f.deleteErr
}

type fakeSecretStore struct {
	puts    []string
	deletes []string
	putErr  error
}

func (f *fakeSecretStore) Put(ctx context.Context, ref string, cred RegistryCredential) error {
	f.puts = append(f.puts, ref)
	return f.putErr
}

func (f *fakeSecretStore) Get(ctx context.Context, ref string) (RegistryCredential, error) {
	return RegistryCredential{}, nil
}

func (f *fakeSecretStore) Delete(ctx context.Context, ref string) error {
	f.deletes = append(f.deletes, ref)
	return nil
}

func TestCreateVersion_WritesCredentialBeforeRow(t *testing.T) {
	w := &fakeWriter{latestSeq: 2}
	secrets := &fakeSecretStore{}
	svc := &Service{writer: w, secrets: secrets}

	v, err := svc.CreateVersion(context.Background(), uuid.New(), CreateVersionRequest{
		PodSpecYAML:        "spec: {}",
		RegistryCredential: RegistryCredential{Registry: "reg", Username: "u", Password: "p"},
	})
	if err != nil {
		t.Fatalf("CreateVersion() error = %v", err)
	}
	if v.Sequence != 3 {
		t.Errorf("Sequence = %d, want 3", v.Sequence)
	}
	if len(secrets.puts) != 1 {
		t.Fatalf("expected exactly one credential put, got %d", len(secrets.puts))
	}
	if w.createdSeq != 3 {
		t.Errorf("CreateVersion was called with sequence %d, want 3", w.createdSeq)
	}
}

func TestCreateVersion_CredentialWriteFailureSkipsRow(t *testing.T) {
	w := &fakeWriter{latestSeq: 0}
	secrets := &fakeSecretStore{putErr: errors.New("redis unavailable")}
	svc := &Service{writer: w, secrets: secrets}

	_, err := svc.CreateVersion(context.Background(), uuid.New(), CreateVersionRequest{
		PodSpecYAML:        "spec: {}",
		RegistryCredential: RegistryCredential{Registry: "reg", Username: "u", Password: "p"},
	})
	if err == nil {
		t.Fatal("expected error when credential write fails")
	}
	if w.createdSeq != 0 {
		t.Error("CreateVersion on the writer must not be called when the credential write fails")
	}
}

func TestDeleteVersion_DeletesRowBeforeCredential(t *testing.T) {
	w := &fakeWriter{version: Version{ID: uuid.New(), CredentialRef: "ref-1"}}
	secrets := &fakeSecretStore{}
	svc := &Service{writer: w, secrets: secrets}

	if err := svc.DeleteVersion(context.Background(), w.version.ID); err != nil {
		t.Fatalf("DeleteVersion() error = %v", err)
	}
	if !w.deleted {
		t.Error("expected the version row to be deleted")
	}
	if len(secrets.deletes) != 1 || secrets.deletes[0] != "ref-1" {
		t.Errorf("deletes = %v, want [ref-1]", secrets.deletes)
	}
}

func TestDeleteVersion_RowDeleteFailureSkipsCredentialDelete(t *testing.T) {
	w := &fakeWriter{
		version:   Version{ID: uuid.New(), CredentialRef: "ref-1"},
		deleteErr: errors.New("db unavailable"),
	}
	secrets := &fakeSecretStore{}
	svc := &Service{writer: w, secrets: secrets}

	if err := svc.DeleteVersion(context.Background(), w.version.ID); err == nil {
		t.Fatal("expected error when the row delete fails")
	}
	if len(secrets.deletes) != 0 {
		t.Error("credential must not be deleted when the row delete fails")
	}
}

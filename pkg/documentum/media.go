package documentum

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

func (s *service) blobStore(op string) (string, BlobStore, error) {
	store, ok := s.blobStores[s.defaultBlobStore]
	if !ok {
		return "", nil, preconditionErr(op, ErrNoBlobStore, "")
	}
	return s.defaultBlobStore, store, nil
}

// MediaObjectKey is the blob key of a media file.
func MediaObjectKey(produitID, mediaID uuid.UUID, fileName string) string {
	return fmt.Sprintf("media/%s/%s/%s", produitID, mediaID, SanitizeFilename(fileName))
}

// UploadMedia stores the file in the default blob store and records it.
// The blob is deleted again if the record cannot be written.
func (s *service) UploadMedia(ctx context.Context, req UploadMediaRequest) (m *Media, err error) {
	const op = "upload_media"
	defer s.observe(op, time.Now(), &err)

	if req.TypeMedia != MediaTypeImage && req.TypeMedia != MediaTypeVideo {
		return nil, validationErr(op, "type_media", ErrInvalidValue, req.TypeMedia)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(req.NomFichier), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return nil, validationErr(op, "nom_fichier", ErrRequired, "")
	}
	if req.Body == nil {
		return nil, validationErr(op, "body", ErrRequired, "")
	}
	backend, store, err := s.blobStore(op)
	if err != nil {
		return nil, err
	}

	err = s.read(ctx, func(tx Tx) error {
		return s.checkMediaRefs(ctx, tx, op, req.ProduitID, req.RubriqueID)
	})
	if err != nil {
		return nil, err
	}

	m = &Media{
		ID:             uuid.New(),
		ProduitID:      req.ProduitID,
		RubriqueID:     req.RubriqueID,
		TypeMedia:      req.TypeMedia,
		NomFichier:     name,
		Description:    req.Description,
		MimeType:       req.MimeType,
		StorageBackend: backend,
		DateCreation:   s.timestamp(),
	}
	m.ObjectKey = MediaObjectKey(m.ProduitID, m.ID, name)

	counter := &countingReader{r: req.Body}
	if err := store.Upload(ctx, m.ObjectKey, counter, req.MimeType); err != nil {
		return nil, fmt.Errorf("upload media %s: %w", m.ObjectKey, err)
	}
	m.Size = counter.n

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		if err := s.checkMediaRefs(ctx, tx, op, m.ProduitID, m.RubriqueID); err != nil {
			return err
		}
		if err := tx.CreateMedia(ctx, m); err != nil {
			return err
		}
		return trail.record(ctx, tx, "upload", ResourceMedia, m.ID, nil, map[string]any{
			"nom_fichier": m.NomFichier,
			"size":        m.Size,
		})
	})
	if err != nil {
		if derr := store.Delete(context.WithoutCancel(ctx), m.ObjectKey); derr != nil {
			s.logger.Error("failed to delete orphaned media blob", "key", m.ObjectKey, "err", derr)
		}
		return nil, err
	}
	return m, nil
}

func (s *service) checkMediaRefs(ctx context.Context, tx Tx, op string, produitID uuid.UUID, rubriqueID *uuid.UUID) error {
	if err := requireTaxon(ctx, tx, op, "produit_id", produitID, TaxonProduit); err != nil {
		return err
	}
	if rubriqueID != nil {
		if _, err := tx.GetRubrique(ctx, *rubriqueID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) GetMedia(ctx context.Context, id uuid.UUID) (m *Media, err error) {
	defer s.observe("get_media", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		m, err = tx.GetMedia(ctx, id)
		return err
	})
	return m, err
}

func (s *service) ListMedia(ctx context.Context, filter MediaFilter) (media []*Media, err error) {
	defer s.observe("list_media", time.Now(), &err)
	err = s.read(ctx, func(tx Tx) error {
		var err error
		media, err = tx.ListMedia(ctx, filter)
		return err
	})
	return media, err
}

// DownloadMedia opens the media file. The caller closes the reader.
func (s *service) DownloadMedia(ctx context.Context, id uuid.UUID) (rc io.ReadCloser, m *Media, err error) {
	const op = "download_media"
	defer s.observe(op, time.Now(), &err)

	if m, err = s.GetMedia(ctx, id); err != nil {
		return nil, nil, err
	}
	store, ok := s.blobStores[m.StorageBackend]
	if !ok {
		return nil, nil, preconditionErr(op, ErrNoBlobStore, m.StorageBackend)
	}
	if rc, err = store.Download(ctx, m.ObjectKey); err != nil {
		return nil, nil, fmt.Errorf("download media %s: %w", m.ObjectKey, err)
	}
	return rc, m, nil
}

func (s *service) ArchiveMedia(ctx context.Context, id uuid.UUID) (m *Media, err error) {
	const op = "archive_media"
	defer s.observe(op, time.Now(), &err)

	err = s.write(ctx, func(tx Tx, trail *auditTrail) error {
		var err error
		if m, err = tx.GetMedia(ctx, id); err != nil {
			return err
		}
		if m.IsArchived {
			return nil
		}
		m.IsArchived = true
		if err := tx.UpdateMedia(ctx, m); err != nil {
			return err
		}
		return trail.record(ctx, tx, "archive", ResourceMedia, m.ID, nil, nil)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

package exchangeimport

import (
	"context"
	"encoding/base64"

	"github.com/quotelineapp/quoteline-server/internal/domain"
	"github.com/quotelineapp/quoteline-server/internal/exchange"
	"github.com/quotelineapp/quoteline-server/internal/id"
	"github.com/quotelineapp/quoteline-server/internal/storage"
)

// importAttachments decodes inline payloads into blob storage and writes
// metadata rows pointing at the entities they landed on. Failures are
// per-attachment warnings; one bad payload never blocks the rest.
func (i *Importer) importAttachments(ctx context.Context, bundle *exchange.Bundle, p *plan, cmpMap, asmMap, quoMap map[string]string, result *Result) {
	for idx := range bundle.Attachments {
		a := bundle.Attachments[idx]

		if err := ctx.Err(); err != nil {
			result.warnf("attachment %s: %v", a.ID, err)
			return
		}

		entityID, ok := remapEntity(a.EntityType, a.EntityID, cmpMap, asmMap, quoMap)
		if !ok {
			result.Skipped["attachments"]++
			continue
		}

		blob, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			result.warnf("attachment %s: invalid base64 payload", a.ID)
			continue
		}

		original := a.OriginalFilename
		if original == "" {
			original = a.Filename
		}
		filename := storage.SanitizeFilename(a.Filename)
		storagePath, err := i.storage.Save(p.destTeamID, filename, blob)
		if err != nil {
			result.warnf("attachment %s: %v", a.ID, err)
			continue
		}

		row := &domain.Attachment{
			TeamID:           p.destTeamID,
			EntityType:       a.EntityType,
			EntityID:         entityID,
			OriginalFilename: original,
			Filename:         filename,
			// The declared content type is untrusted; the extension decides.
			ContentType: storage.MIMEFromExtension(filename),
			Size:        int64(len(blob)),
			StoragePath: storagePath,
		}
		row.ID = a.ID
		if !p.keepChildID(entityID == a.EntityID) {
			row.ID = id.MustGenerate(id.PrefixAttachment)
		}
		row.InitTimestamps()

		if err := i.store.Attachments.Upsert(ctx, p.destTeamID, row.ID, row); err != nil {
			result.warnf("attachment %s: %v", row.ID, err)
			continue
		}
		result.Imported["attachments"]++
	}
}

// remapEntity resolves an attachment's owner through the ID maps. Owners
// that were not imported (or an unknown entity type) leave the attachment
// without a home, so it is skipped.
func remapEntity(entityType, entityID string, cmpMap, asmMap, quoMap map[string]string) (string, bool) {
	switch entityType {
	case "component":
		mapped, ok := cmpMap[entityID]
		return mapped, ok
	case "assembly":
		mapped, ok := asmMap[entityID]
		return mapped, ok
	case "quotation":
		mapped, ok := quoMap[entityID]
		return mapped, ok
	}
	return "", false
}

package httpadapter

import (
	"net/http"

	"github.com/mewerton/universal-system/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNamespaceNotFound),
		domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrIndexNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrExtraction), domain.IsKind(err, domain.ErrNoDocuments):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrAnswerGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// mapErrorToMessage returns the user-facing message. Internal details stay in the logs.
func mapErrorToMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "Requisição inválida."
	case domain.IsKind(err, domain.ErrNamespaceNotFound):
		return "Vertical não encontrada."
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return "Documento não encontrado."
	case domain.IsKind(err, domain.ErrIndexNotFound):
		return "Nenhum documento indexado para esta vertical."
	case domain.IsKind(err, domain.ErrExtraction):
		return "Não foi possível ler o PDF enviado."
	case domain.IsKind(err, domain.ErrNoDocuments):
		return "Nenhum chunk disponível para criar o índice."
	case domain.IsKind(err, domain.ErrTemporary):
		return "Serviço temporariamente indisponível."
	case domain.IsKind(err, domain.ErrAnswerGeneration):
		return "Não foi possível gerar a resposta."
	default:
		return "Erro interno."
	}
}

package models

const (
	DefaultChunkSize  = 10
	DefaultTopK       = 5
	ContextSeparator  = "\n\n"
	NoContextAnswer   = "No context found for this query."
	CharsPerToken     = 4
	TenantSeparator   = "_"
	CollectionPrefix  = "user_"
	MetaUserID        = "user_id"
	MetaDocumentID    = "document_id"
	MetaTenant        = "tenant"
	MetaPageNumber    = "page_number"
	DefaultMaxTokens  = 500
	DefaultRetryAfter = 60 // seconds
)

var (
	AnswerPromptTemplate = `You are an intelligent assistant. Based on the following context, provide a summarized and well-interpreted answer to the question.
Answer based on the context only. If the context does not contain the answer, say so.

Context:
%s

Question: %s

Please provide a detailed and clear answer based on the document.`
)

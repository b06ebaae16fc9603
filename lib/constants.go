package svn

const (
	Newline                 = "\n"
	VersionStringHeader     = "SVN-fs-dump-format-version"
	UUIDHeader              = "UUID"
	RevisionNumberHeader    = "Revision-number"
	NodePathHeader          = "Node-path"
	NodeKindHeader          = "Node-kind"
	NodeActionHeader        = "Node-action"
	NodeCopyfromRevHeader   = "Node-copyfrom-rev"
	NodeCopyfromPathHeader  = "Node-copyfrom-path"
	PropContentLengthHeader = "Prop-content-length"
	TextContentLengthHeader = "Text-content-length"
	TextDeltaHeader         = "Text-delta"
	PropDeltaHeader         = "Prop-delta"
	ContentLengthHeader     = "Content-length"
	PropsEnd                = "PROPS-END"
)

// Well known svn properties.
const (
	PropAuthor     = "svn:author"
	PropDate       = "svn:date"
	PropLog        = "svn:log"
	PropExecutable = "svn:executable"
	PropSpecial    = "svn:special"
)

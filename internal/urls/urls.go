package urls

// Project links

// Project is the source repository of the bridge and the config CLI.
const Project = "https://github.com/muurk/remootio"

// ProjectShort is Project without the scheme, for headers.
const ProjectShort = "github.com/muurk/remootio"

// Device documentation

// APIDocumentation describes the Remootio websocket API, how to enable it in
// the Remootio app and where the API Secret Key and API Auth Key are shown.
const APIDocumentation = "https://github.com/remootio/remootio-api-documentation"


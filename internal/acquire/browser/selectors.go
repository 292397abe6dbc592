package browser

// Page selectors of the interactive map.
const (
	saveInputSelector        = "#saveGameFileInput"
	loaderSelector           = "#productionContainer .loader"
	downloadButtonSelector   = "#downloadSaveGameModalButton"
	mapSelector              = "#productionContainer"
	overlayCanvasSelector    = ".leaflet-overlay-pane canvas"
	optionsButtonSelector    = "#optionsButton button"
	optionsModalSelector     = "#optionsModal.show"
	statOptionsSelector      = "a[href='#statisticsModalOptions']"
	circuitToggleSelector    = "#inputShowCircuitsColors"
	optionsCloseSelector     = "#optionsModal .modal-header button.close"
	showPureNodesSelector    = ".selectPurity[data-purity='pure']"
	togglePureNodesSelector  = ".togglePurity[data-purity='pure']"
	activeLayerButtonClass   = "btn-outline-warning"
	maxLayerToggleIterations = 10
)

// dialog is a popup that covers the map after navigation.
type dialog struct {
	name     string
	selector string
	// dismiss is the close control inside the dialog; empty removes the dialog node.
	dismiss string
}

var dialogs = []dialog{
	{name: "patreon", selector: "#patreonModal", dismiss: "button.close"},
	{name: "cookies", selector: "[aria-label='cookieconsent']", dismiss: "a.cc-dismiss"},
	{name: "consent", selector: ".fc-choice-dialog", dismiss: "button.fc-cta-consent"},
	{name: "monetize", selector: ".fc-message-root"},
}

// layerButtons toggle map layers that would clutter the capture.
var layerButtons = []string{
	".btn[data-id='playerPositionLayer']",
	".btn[data-id='playerHUBTerminalLayer']",
	".btn[data-id='playerOrientationLayer']",
	".btn[data-id='playerCratesLayer']",
	".btn[data-id='playerSpaceRabbitLayer']",
	".btn[data-id='playerFaunaLayer']",
	".btn[data-id='playerFicsmasLayer']",
	".btn[data-id='playerFogOfWar']",
	".btn[data-id='playerVehiculesLayer']",
	".btn[data-id='playerRadioactivityLayer']",
}

package element

// Role name constants used by the predicates below, per §4.2's
// role/subrole-based classification.
const (
	roleWindow       = "AXWindow"
	roleSheet        = "AXSheet"
	roleDrawer       = "AXDrawer"
	roleButton       = "AXButton"
	roleTextField    = "AXTextField"
	roleTextArea     = "AXTextArea"
	roleStaticText   = "AXStaticText"
	roleLink         = "AXLink"
	roleMenu         = "AXMenu"
	roleMenuItem     = "AXMenuItem"
	roleMenuBar      = "AXMenuBar"
	roleMenuBarItem  = "AXMenuBarItem"
	roleTable        = "AXTable"
	roleOutline      = "AXOutline"
	roleRow          = "AXRow"
	roleCell         = "AXCell"
	roleList         = "AXList"
	roleScrollArea   = "AXScrollArea"
	roleDockItem     = "AXDockItem"
	roleComboBox     = "AXComboBox"
	roleCheckBox     = "AXCheckBox"
	roleRadioButton  = "AXRadioButton"
	roleSlider       = "AXSlider"

	subroleDialog           = "AXDialog"
	subroleStandardWindow   = "AXStandardWindow"
	subroleSecureTextField  = "AXSecureTextField"
	subroleSearchField      = "AXSearchField"
)

var interactiveRoles = map[string]bool{
	roleButton:      true,
	roleTextField:   true,
	roleTextArea:    true,
	roleLink:        true,
	roleMenuItem:    true,
	roleComboBox:    true,
	roleCheckBox:    true,
	roleRadioButton: true,
	roleSlider:      true,
}

func (h *Handle) IsWindow() bool {
	role, _ := h.Role()
	return role == roleWindow
}

func (h *Handle) IsDialog() bool {
	sub, _ := h.Subrole()
	return sub == subroleDialog
}

func (h *Handle) IsStandardWindow() bool {
	sub, _ := h.Subrole()
	return h.IsWindow() && sub == subroleStandardWindow
}

func (h *Handle) IsButton() bool {
	role, _ := h.Role()
	return role == roleButton
}

func (h *Handle) IsTextField() bool {
	role, _ := h.Role()
	return role == roleTextField
}

func (h *Handle) IsSecureTextField() bool {
	sub, _ := h.Subrole()
	return h.IsTextField() && sub == subroleSecureTextField
}

func (h *Handle) IsSearchField() bool {
	sub, _ := h.Subrole()
	return h.IsTextField() && sub == subroleSearchField
}

func (h *Handle) IsTextArea() bool {
	role, _ := h.Role()
	return role == roleTextArea
}

func (h *Handle) IsStaticText() bool {
	role, _ := h.Role()
	return role == roleStaticText
}

func (h *Handle) IsLink() bool {
	role, _ := h.Role()
	return role == roleLink
}

func (h *Handle) IsMenu() bool {
	role, _ := h.Role()
	return role == roleMenu
}

func (h *Handle) IsMenuItem() bool {
	role, _ := h.Role()
	return role == roleMenuItem
}

func (h *Handle) IsMenuBar() bool {
	role, _ := h.Role()
	return role == roleMenuBar || role == roleMenuBarItem
}

func (h *Handle) IsTable() bool {
	role, _ := h.Role()
	return role == roleTable || role == roleOutline
}

func (h *Handle) IsRow() bool {
	role, _ := h.Role()
	return role == roleRow
}

func (h *Handle) IsCell() bool {
	role, _ := h.Role()
	return role == roleCell
}

func (h *Handle) IsList() bool {
	role, _ := h.Role()
	return role == roleList
}

func (h *Handle) IsScrollArea() bool {
	role, _ := h.Role()
	return role == roleScrollArea
}

func (h *Handle) IsDockItem() bool {
	role, _ := h.Role()
	return role == roleDockItem
}

// IsInteractive reports whether the element is enabled and either
// belongs to the fixed interactive-role set, or supports the primary
// "AXPress" action (§4.2).
func (h *Handle) IsInteractive() bool {
	enabled, ok := h.IsEnabled()
	if ok && !enabled {
		return false
	}
	role, _ := h.Role()
	if interactiveRoles[role] {
		return true
	}
	return h.IsActionSupported("AXPress")
}

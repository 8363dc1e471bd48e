package usecase

import (
	"github.com/iamvkosarev/easymatter-bot/pkg/local"
)

var (
	TextInterpretationFailed = local.NewSet(
		"Sorry, I couldn't process your request right now. Please try again in a moment.",
		local.NewTrans(local.Rus, "Извините, сейчас не получилось обработать запрос. Попробуйте ещё раз чуть позже."),
	)
	TextServerError = local.NewSet(
		"Something wrong with me. Try later",
		local.NewTrans(local.Rus, "Что-то пошло не так. Попробуйте позже"),
	)
	TextUserNoAccess = local.NewSet(
		"You are not allowed to use this bot",
		local.NewTrans(local.Rus, "У вас нет доступа к этому боту"),
	)
	TextCommandStart = local.NewSet(
		"Welcome to EasyMatter! Describe the material you want to design and I will turn it into MatterGen parameters. "+
			"Use /templates to start from a ready design goal and /help to see every command.",
		local.NewTrans(
			local.Rus,
			"Добро пожаловать в EasyMatter! Опишите материал, который хотите создать, и я переведу это в параметры MatterGen. "+
				"Команда /templates покажет готовые цели дизайна, /help покажет все команды.",
		),
	)
	TextCommandHelp = local.NewSet(
		"Write what you need in plain words to refine the design.\n"+
			"/new - start the conversation over\n"+
			"/templates - list design templates\n"+
			"/template <id> - start a session from a template\n"+
			"/properties - show the property board\n"+
			"/set <key> <value> - edit a property\n"+
			"/code - get the MatterGen script\n"+
			"/notebook - get a Colab notebook\n"+
			"/sessions - list your sessions\n"+
			"/explain <property> [beginner|intermediate|advanced] - explain a property",
		local.NewTrans(
			local.Rus,
			"Пишите обычными словами, что вам нужно, чтобы уточнить дизайн.\n"+
				"/new - начать разговор заново\n"+
				"/templates - список шаблонов\n"+
				"/template <id> - новая сессия из шаблона\n"+
				"/properties - показать свойства\n"+
				"/set <ключ> <значение> - изменить свойство\n"+
				"/code - получить скрипт MatterGen\n"+
				"/notebook - получить ноутбук Colab\n"+
				"/sessions - список ваших сессий\n"+
				"/explain <свойство> [beginner|intermediate|advanced] - объяснить свойство",
		),
	)
	TextCommandUnknown = local.NewSet(
		"I don't know that command",
		local.NewTrans(local.Rus, "Я не знаю такой команды"),
	)
	TextSessionBusy = local.NewSet(
		"I'm still working on your previous message, please wait.",
		local.NewTrans(local.Rus, "Я ещё обрабатываю предыдущее сообщение, подождите."),
	)
	TextSessionReset = local.NewSet(
		"Started over. %s",
		local.NewTrans(local.Rus, "Начинаем заново. %s"),
	)
	TextTemplateUsage = local.NewSet(
		"Usage: /template <id>. See /templates for the list.",
		local.NewTrans(local.Rus, "Использование: /template <id>. Список в /templates."),
	)
	TextTemplateNotFound = local.NewSet(
		"There is no template %q. See /templates for the list.",
		local.NewTrans(local.Rus, "Шаблона %q нет. Список в /templates."),
	)
	TextTemplateStarted = local.NewSet(
		"New session: %s.\n\n%s",
		local.NewTrans(local.Rus, "Новая сессия: %s.\n\n%s"),
	)
	TextSetUsage = local.NewSet(
		"Usage: /set <key> <value>. See /properties for the keys.",
		local.NewTrans(local.Rus, "Использование: /set <ключ> <значение>. Ключи в /properties."),
	)
	TextPropertyNotFound = local.NewSet(
		"There is no property %q on the board.",
		local.NewTrans(local.Rus, "Свойства %q нет на доске."),
	)
	TextPropertyReadOnly = local.NewSet(
		"Property %q is fixed by the template and can't be changed.",
		local.NewTrans(local.Rus, "Свойство %q задано шаблоном и не может быть изменено."),
	)
	TextPropertyUpdated = local.NewSet(
		"%s is now %s.",
		local.NewTrans(local.Rus, "%s теперь %s."),
	)
	TextPropertiesEmpty = local.NewSet(
		"No properties yet. Tell me about the material you want.",
		local.NewTrans(local.Rus, "Свойств пока нет. Расскажите, какой материал вам нужен."),
	)
	TextPropertiesUpdated = local.NewSet(
		"Property board updated. Use /properties to review it.",
		local.NewTrans(local.Rus, "Свойства обновлены. Посмотреть: /properties."),
	)
	TextMissingSlots = local.NewSet(
		"I can't build the script yet, these properties are missing: %s.",
		local.NewTrans(local.Rus, "Пока не могу собрать скрипт, не хватает свойств: %s."),
	)
	TextArtifactReady = local.NewSet(
		"Your MatterGen script is ready. Open it in Colab: %s",
		local.NewTrans(local.Rus, "Скрипт MatterGen готов. Открыть в Colab: %s"),
	)
	TextArtifactUploaded = local.NewSet(
		"Your MatterGen script is ready. Download it here: %s",
		local.NewTrans(local.Rus, "Скрипт MatterGen готов. Скачать: %s"),
	)
	TextNoSessions = local.NewSet(
		"You have no sessions yet.",
		local.NewTrans(local.Rus, "У вас пока нет сессий."),
	)
	TextSessionsHeader = local.NewSet(
		"You have %d sessions.\n",
		local.NewTrans(local.Rus, "У вас %d сессий.\n"),
	)
	TextTemplatesHeader = local.NewSet(
		"Design templates:\n",
		local.NewTrans(local.Rus, "Шаблоны дизайна:\n"),
	)
	TextTemplatesEmpty = local.NewSet(
		"There are no templates in this category.",
		local.NewTrans(local.Rus, "В этой категории нет шаблонов."),
	)
	TextArtifactTooLarge = local.NewSet(
		"The script is too large for a Colab link, use the attached file.",
		local.NewTrans(local.Rus, "Скрипт слишком большой для ссылки на Colab, используйте приложенный файл."),
	)
	TextExplainUsage = local.NewSet(
		"Usage: /explain <property> [beginner|intermediate|advanced].",
		local.NewTrans(local.Rus, "Использование: /explain <свойство> [beginner|intermediate|advanced]."),
	)
	TextExplainFailed = local.NewSet(
		"I can't explain that property right now. Please try again later.",
		local.NewTrans(local.Rus, "Сейчас не получается объяснить это свойство. Попробуйте позже."),
	)
)
